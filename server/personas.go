package server

import "fmt"

// assistantInstructions is the live-session identity handed to the language
// model with every reply.
const assistantInstructions = `You are Nova, a friendly and conversational AI voice assistant.
Your owner is Priya Diwakar, a CS student from Surat.
Respond naturally and in plain text (no markdown).`

const defaultPersona = "friendly"

// personas are the canned voices for the one-shot upload endpoint. The
// capitalized names use a shorter format than their lowercase counterparts.
var personas = map[string]func(message string) string{
	"Pirate":   func(message string) string { return fmt.Sprintf("☠️ Ahoy matey! %s", message) },
	"Cowboy":   func(message string) string { return fmt.Sprintf("🤠 Howdy partner! %s", message) },
	"Robot":    func(message string) string { return fmt.Sprintf("🤖 Beep boop... %s", message) },
	"Friendly": func(message string) string { return fmt.Sprintf("🙂 Sure! %s", message) },
	"pirate":   func(message string) string { return fmt.Sprintf("☠️ Ahoy matey! Ye said: %s", message) },
	"cowboy":   func(message string) string { return fmt.Sprintf("🤠 Howdy partner! You said: %s", message) },
	"robot":    func(message string) string { return fmt.Sprintf("🤖 Beep boop. Processing: %s", message) },
	"friendly": func(message string) string { return fmt.Sprintf("🙂 Hey friend! You said: %s", message) },
}

func personaReply(persona string, message string) string {
	reply, ok := personas[persona]
	if !ok {
		reply = personas[defaultPersona]
	}
	return reply(message)
}

func fetchNews() string {
	return "📰 Breaking News: AI agents are becoming smarter every day!"
}
