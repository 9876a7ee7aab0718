package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxResumeText bounds the text layer copied into the prompt.
const maxResumeText = 12000

const feedbackFormat = `{
  "overallScore": number (0-100),
  "ATS": {
    "score": number (0-100),
    "tips": [{ "type": "good" | "improve", "tip": string }]
  },
  "toneAndStyle": {
    "score": number (0-100),
    "tips": [{ "type": "good" | "improve", "tip": string, "explanation": string }]
  },
  "content": {
    "score": number (0-100),
    "tips": [{ "type": "good" | "improve", "tip": string, "explanation": string }]
  },
  "structure": {
    "score": number (0-100),
    "tips": [{ "type": "good" | "improve", "tip": string, "explanation": string }]
  },
  "skills": {
    "score": number (0-100),
    "tips": [{ "type": "good" | "improve", "tip": string, "explanation": string }]
  }
}`

// BuildPrompt renders the instructions sent with the resume image.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are an expert in ATS (Applicant Tracking System) and resume analysis.\n")
	b.WriteString("Analyze and rate the attached resume and suggest how to improve it.\n")
	b.WriteString("The rating can be low if the resume is bad. Be thorough and detailed; point out mistakes and areas for improvement.\n")
	b.WriteString("If provided, take the job description into consideration.\n")
	fmt.Fprintf(&b, "The job title is: %s\n", strings.TrimSpace(in.JobTitle))
	if company := strings.TrimSpace(in.CompanyName); company != "" {
		fmt.Fprintf(&b, "The company is: %s\n", company)
	}
	fmt.Fprintf(&b, "The job description is: %s\n", strings.TrimSpace(in.JobDescription))
	if text := strings.TrimSpace(in.ResumeText); text != "" {
		if r := []rune(text); len(r) > maxResumeText {
			text = string(r[:maxResumeText])
		}
		b.WriteString("The resume's text layer follows between the markers.\n<<<RESUME\n")
		b.WriteString(text)
		b.WriteString("\nRESUME>>>\n")
	}
	b.WriteString("Provide the feedback using the following format:\n")
	b.WriteString(feedbackFormat)
	b.WriteString("\nReturn the analysis as a JSON object, without any other text and without backticks.\n")
	b.WriteString("ATS tips carry no explanation; every other tip should give 3-4 tips with explanations.")
	return b.String()
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
