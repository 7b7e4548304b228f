package llm

import (
	"context"
	"strings"
	"time"
)

// DemoClient produces deterministic medical-information responses keyed by
// symptom keywords. It is registered when no provider API key is configured,
// so the service keeps answering instead of failing startup.
type DemoClient struct{}

// NewDemoClient returns a demo provider.
func NewDemoClient() *DemoClient { return &DemoClient{} }

// Name returns the provider name.
func (d *DemoClient) Name() string { return "demo" }

// Complete answers from the canned response table using the last user message.
func (d *DemoClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var userMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			userMessage = req.Messages[i].Content
			break
		}
	}

	content := demoResponse(userMessage)
	return &CompletionResponse{
		Content: content,
		Model:   "demo",
		Usage: Usage{
			InputTokens:  len(strings.Fields(userMessage)),
			OutputTokens: len(strings.Fields(content)),
		},
		Duration: time.Millisecond,
	}, nil
}

func demoResponse(userMessage string) string {
	lower := strings.ToLower(userMessage)

	switch {
	case containsAny(lower, "headache", "head", "migraine"):
		return `Headaches can have various causes:

- Tension headaches: often caused by stress, dehydration, or muscle tension
- Dehydration: very common, especially if you haven't had enough water
- Sleep issues: lack of sleep or poor sleep quality

General recommendations: stay well hydrated, get adequate sleep (7-9 hours), and try relaxation techniques.

Seek medical care for a sudden severe headache unlike any before, a headache with fever or stiff neck, or headaches that are frequent or worsening.`

	case containsAny(lower, "stomach", "belly", "gas", "nausea", "abdomen"):
		return `Stomach discomfort can be caused by dietary factors, normal digestion, stress, or dehydration.

General recommendations: eat slowly, stay hydrated, avoid foods that commonly cause gas, and try gentle movement like walking.

Seek medical care for severe or persistent pain, vomiting that won't stop, signs of dehydration, or pain with fever.`

	case containsAny(lower, "fever", "temperature", "chills"):
		return `Fever is often the body's natural response to infection. 98.6F (37C) is average; a low-grade fever starts around 100.4F (38C).

General care: rest, stay hydrated, monitor your temperature, and keep the environment cool.

Seek medical care for a fever over 103F (39.4C), a fever lasting more than 3 days, or difficulty breathing.`

	default:
		return `Here is some general health information:

- Monitor your symptoms and how they change
- Stay well hydrated and get adequate rest
- Note if symptoms worsen or interfere with daily activities

If you're concerned about your symptoms, consider consulting a healthcare provider who can properly evaluate your specific situation.`
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
