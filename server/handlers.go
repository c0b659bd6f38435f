package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext/assemblyai"
	"github.com/Priya-Diwakar/nova-voice-assistant/internal/config"
)

type keysRequest struct {
	Murf        string `json:"murf"`
	AssemblyAI  string `json:"assemblyai"`
	Gemini      string `json:"gemini"`
	News        string `json:"news"`
	OpenWeather string `json:"openweather"`
}

// handleSetKeys merges the submitted credentials into the runtime store.
// Empty fields leave the stored key untouched.
func (s *Server) handleSetKeys(c *fiber.Ctx) error {
	var request keysRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body.",
		})
	}

	updated := s.keys.Set(config.Keys{
		Murf:        request.Murf,
		AssemblyAI:  request.AssemblyAI,
		Gemini:      request.Gemini,
		News:        request.News,
		OpenWeather: request.OpenWeather,
	})
	logger.Info("Updated API keys", "keys", updated)

	return c.JSON(fiber.Map{"message": "API keys updated successfully"})
}

// handleUploadAudio transcribes a recorded audio file and answers with a
// canned persona reply instead of the live pipeline.
func (s *Server) handleUploadAudio(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "An audio file is required.",
		})
	}

	persona := c.Query("persona", defaultPersona)

	audio, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not read the uploaded file.",
		})
	}
	defer audio.Close()

	text, err := assemblyai.TranscribeFile(c.Context(), s.keys.Snapshot().AssemblyAI, audio)
	if err != nil {
		logger.Error("Failed to transcribe uploaded audio", "error", err)
		text = "Sorry, I could not understand."
	}

	reply := personaReply(persona, text)
	reply += fmt.Sprintf("\n\n✨ Extra Skill: %s", fetchNews())

	return c.JSON(fiber.Map{
		"input_text":    text,
		"persona_reply": reply,
	})
}
