package gemini

import "strings"

// TeachingInstruction is prepended to every question sent to the model.
const TeachingInstruction = "You are an expert NEET/JEE teacher.\n" +
	"Answer in the SAME language as the question.\n" +
	"Explain step by step, exam-oriented.\n\n"

// DefaultImageCaption stands in for a photo sent without a caption.
const DefaultImageCaption = "Solve the question shown in the image."

// BuildPrompt returns the text part sent to the model for question.
func BuildPrompt(question string) string {
	return TeachingInstruction + question
}

// TextQuestion frames a plain text doubt.
func TextQuestion(text string) string {
	return "Question:\n" + strings.TrimSpace(text)
}

// ImageQuestion frames the caption of a photo doubt.
func ImageQuestion(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		caption = DefaultImageCaption
	}
	return "Question (image based):\n" + caption
}
