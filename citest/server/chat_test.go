package server_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/advisor-ai/advisor/citest/testutil"
	"github.com/advisor-ai/advisor/pkg/types"
)

var _ = Describe("POST /chat", func() {
	Describe("answering questions", func() {
		It("returns a structured response for an investment question", func() {
			sessionID := newSessionID("chat")

			resp, err := client.Chat(ctx, sessionID, "How does diversification work?")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Text).To(ContainSubstring("Diversification"))
			Expect(resp.SessionID).To(Equal(sessionID))
			Expect(resp.RequestID).NotTo(BeEmpty())
			Expect(resp.Reason).To(Equal(types.ReasonStop))
			Expect(resp.Blocked).To(BeFalse())
			Expect(resp.Usage.Completion).To(BeNumerically(">", 0))
			Expect(resp.Turns.UserTurnID).NotTo(BeEmpty())
			Expect(resp.Turns.AssistantTurnID).NotTo(BeEmpty())
		})

		It("classifies the question intent through the router", func() {
			resp, err := client.Chat(ctx, newSessionID("intent"), "What is compound interest?")
			Expect(err).NotTo(HaveOccurred())

			// The mock router derives question_answering for concept questions.
			Expect(resp.Intent).To(Equal(types.IntentQuestionAnswering))
			Expect(resp.Confidence).To(BeNumerically(">", 0.5))
		})

		It("honors the category the router replies with", func() {
			testServer.Model.SetRouteReply("market_research|0.9")
			defer testServer.Model.SetRouteReply("")

			resp, err := client.Chat(ctx, newSessionID("routed"), "Where are markets heading this quarter?")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Intent).To(Equal(types.IntentMarketResearch))
			Expect(resp.Confidence).To(BeNumerically("~", 0.9, 1e-9))
		})

		It("falls back to question answering when the router replies garbage", func() {
			testServer.Model.SetRouteReply("no pipes here")
			defer testServer.Model.SetRouteReply("")

			resp, err := client.Chat(ctx, newSessionID("fallback"), "What is an ETF?")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Intent).To(Equal(types.IntentQuestionAnswering))
			Expect(resp.Confidence).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("conversation context", func() {
		It("feeds earlier turns of the session into the next prompt", func() {
			sessionID := newSessionID("context")

			first, err := client.Chat(ctx, sessionID, "What is an ETF?")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Text).To(ContainSubstring("ETF"))

			before := len(testServer.Model.Requests())
			_, err = client.Chat(ctx, sessionID, "How does it differ from a mutual fund?")
			Expect(err).NotTo(HaveOccurred())

			// The last model call of the second request carries the first
			// exchange as conversation history.
			requests := testServer.Model.Requests()
			Expect(len(requests)).To(BeNumerically(">", before))
			last := requests[len(requests)-1]

			var sawQuestion, sawAnswer bool
			for _, msg := range last.Messages {
				if strings.Contains(msg.Content, "What is an ETF?") {
					sawQuestion = true
				}
				if strings.Contains(msg.Content, first.Text) {
					sawAnswer = true
				}
			}
			Expect(sawQuestion).To(BeTrue(), "prior question missing from prompt")
			Expect(sawAnswer).To(BeTrue(), "prior answer missing from prompt")
		})

		It("returns turn references that match the stored history", func() {
			sessionID := newSessionID("refs")

			resp, err := client.Chat(ctx, sessionID, "Explain bond basics.")
			Expect(err).NotTo(HaveOccurred())

			history, err := client.History(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Turns).To(HaveLen(2))
			Expect(history.Turns[0].ID).To(Equal(resp.Turns.UserTurnID))
			Expect(history.Turns[1].ID).To(Equal(resp.Turns.AssistantTurnID))
			Expect(history.Turns[1].Content).To(Equal(resp.Text))
		})
	})

	Describe("response filtering", func() {
		It("refuses a blocked answer without leaking it", func() {
			testServer.Model.SetAnswer("penny stock", "This penny stock offers guaranteed returns for everyone.")
			sessionID := newSessionID("blocked")

			resp, err := client.Chat(ctx, sessionID, "Give me penny stock tips.")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Blocked).To(BeTrue())
			Expect(resp.Text).NotTo(ContainSubstring("guaranteed"))
			Expect(resp.Text).NotTo(ContainSubstring("penny"))
			Expect(resp.Flags).To(HaveLen(1))
			Expect(resp.Flags[0].Rule).To(Equal("guaranteed-returns"))
			Expect(resp.Flags[0].Action).To(Equal("block"))

			// A blocked exchange never reaches the context store.
			_, err = client.History(ctx, sessionID)
			var apiErr *testutil.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(404))
		})

		It("redacts account numbers instead of blocking", func() {
			testServer.Model.SetAnswer("brokerage account", "Your brokerage account 9876543210987654 holds three ETFs.")
			sessionID := newSessionID("redact")

			resp, err := client.Chat(ctx, sessionID, "What does my brokerage account hold?")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Blocked).To(BeFalse())
			Expect(resp.Text).NotTo(ContainSubstring("9876543210987654"))
			Expect(resp.Text).To(ContainSubstring("[redacted]"))
			Expect(resp.Flags).To(HaveLen(1))
			Expect(resp.Flags[0].Rule).To(Equal("account-numbers"))

			// The stored turn holds the redacted text, not the original.
			history, err := client.History(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Turns[1].Content).To(ContainSubstring("[redacted]"))
		})

		It("annotates direct advice with the educational disclaimer", func() {
			testServer.Model.SetAnswer("growth strategy", "You should buy broad index funds and hold them for decades.")

			resp, err := client.Chat(ctx, newSessionID("disclaimer"), "What growth strategy fits a beginner?")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Blocked).To(BeFalse())
			Expect(resp.Text).To(ContainSubstring("not personalized investment advice"))

			var rules []string
			for _, flag := range resp.Flags {
				rules = append(rules, flag.Rule)
			}
			Expect(rules).To(ContainElement("advice-disclaimer"))
		})
	})

	Describe("input validation", func() {
		It("rejects an empty message", func() {
			_, err := client.Chat(ctx, newSessionID("empty"), "   ")

			var apiErr *testutil.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(400))
			Expect(apiErr.Code).To(Equal("INVALID_REQUEST"))
		})

		It("rejects a request without a session id", func() {
			_, err := client.Chat(ctx, "", "What is a bond?")

			var apiErr *testutil.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(400))
		})
	})

	Describe("model endpoint failures", func() {
		It("retries a transient failure and succeeds", func() {
			// One failure for the routing call, one for the first inference
			// attempt; the retry lands on a healthy endpoint.
			testServer.Model.FailNext(2)

			resp, err := client.Chat(ctx, newSessionID("retry"), "What is dollar-cost averaging?")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).NotTo(BeEmpty())
			Expect(resp.Reason).To(Equal(types.ReasonStop))
		})

		It("surfaces a provider error once retries are exhausted", func() {
			testServer.Model.FailNext(3)

			_, err := client.Chat(ctx, newSessionID("down"), "What is a bond ladder?")

			var apiErr *testutil.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(502))
			Expect(apiErr.Code).To(Equal("PROVIDER_ERROR"))
			Expect(apiErr.Message).To(ContainSubstring("technical difficulties"))
		})
	})
})
