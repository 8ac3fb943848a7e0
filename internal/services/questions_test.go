package services

import (
	"strings"
	"testing"

	"github.com/refcheckai/refcheck-backend/internal/models"
)

func TestGenerateReferenceQuestions(t *testing.T) {
	candidate := &models.Candidate{Name: "Jane Doe"}
	job := &models.Job{
		Company:          "Acme Corp",
		Title:            "Engineer",
		Responsibilities: []string{"Led the platform team"},
		Achievements:     []string{"Shipped v2", "Cut costs 30%", "Hired 5 engineers", "Won an award"},
	}

	questions := GenerateReferenceQuestions(job, candidate, []string{"  Did they mentor juniors?  ", "   "})

	joined := strings.Join(questions, "\n")
	if !strings.Contains(joined, "Jane Doe worked at Acme Corp as a Engineer") {
		t.Error("employment confirmation question missing")
	}
	if !strings.Contains(joined, "Led the platform team") {
		t.Error("responsibility question missing")
	}
	if !strings.Contains(joined, "Did they mentor juniors?") {
		t.Error("custom question not appended trimmed")
	}
	if strings.Contains(joined, "Won an award") {
		t.Error("achievements not capped at 3")
	}

	// Blank custom questions are dropped.
	for _, q := range questions {
		if strings.TrimSpace(q) == "" {
			t.Error("blank question in output")
		}
	}
}

func TestGenerateReferenceQuestionsNilJob(t *testing.T) {
	candidate := &models.Candidate{Name: "Jane Doe"}

	questions := GenerateReferenceQuestions(nil, candidate, nil)
	if len(questions) == 0 {
		t.Fatal("no questions generated without a job")
	}
	if !strings.Contains(questions[0], "the company") {
		t.Errorf("first question = %q, want company placeholder", questions[0])
	}
}

func TestTargetRoleQuestions(t *testing.T) {
	candidate := &models.Candidate{
		Name:               "Jane Doe",
		TargetRoleCategory: "Engineering / Technical",
		TargetRoleDetails:  "distributed systems",
	}

	questions := GenerateReferenceQuestions(nil, candidate, nil)
	joined := strings.Join(questions, "\n")
	if !strings.Contains(joined, "technical problem-solving") {
		t.Error("category question missing")
	}
	if !strings.Contains(joined, "distributed systems") {
		t.Error("details question missing")
	}
}

func TestBuildAssistantPrompt(t *testing.T) {
	candidate := &models.Candidate{Name: "Jane Doe"}
	job := &models.Job{Company: "Acme Corp", Title: "Engineer"}
	questions := []string{"Q one?", "Q two?"}

	prompt := BuildAssistantPrompt(candidate, "John Smith", job, questions)

	for _, want := range []string{"John Smith", "Jane Doe", "Acme Corp", "- Q one?\n", "- Q two?\n", "Do NOT mention you are an AI"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildAssistantPromptNilJob(t *testing.T) {
	candidate := &models.Candidate{Name: "Jane Doe"}

	prompt := BuildAssistantPrompt(candidate, "John Smith", nil, nil)
	if !strings.Contains(prompt, "the company") {
		t.Error("prompt missing company placeholder for nil job")
	}
}
