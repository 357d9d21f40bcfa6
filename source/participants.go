package source

import (
	"regexp"
	"strconv"
	"strings"
)

// Participant holds the identity details detected for one interview
// speaker. Every field is best-effort; blanks mean nothing was found.
type Participant struct {
	Name   string `json:"name"`
	Grade  string `json:"grade,omitempty"`
	Age    int    `json:"age,omitempty"`
	School string `json:"school,omitempty"`
}

var (
	// speakerPattern matches "지민:" / "김현우 :" style speaker labels
	// at the start of a transcript line.
	speakerPattern = regexp.MustCompile(`^([가-힣A-Za-z]{2,10})\s*[:：]`)

	// gradePattern matches compact grade notation such as 초3, 중2,
	// 고1. Years are bounded per school level: six elementary years,
	// three each for middle and high school.
	gradePattern = regexp.MustCompile(`초\s*[1-6]|[중고]\s*[1-3]`)

	agePattern = regexp.MustCompile(`([1-9][0-9]?)\s*(?:살|세)`)

	schoolPattern = regexp.MustCompile(`([가-힣]{2,15}(?:초등학교|중학교|고등학교))`)

	// interviewerLabels are speaker labels that introduce questions,
	// not participants.
	interviewerLabels = map[string]bool{
		"인터뷰어": true,
		"진행자":  true,
		"질문":   true,
		"Q":    true,
	}
)

// ExtractParticipants scans a transcript for speaker labels and
// identity mentions (grade, age, school) near them. The heuristic never
// fails: a transcript with no recognizable participants yields an empty
// slice, not an error.
func ExtractParticipants(text string) []Participant {
	lines := strings.Split(text, "\n")

	byName := make(map[string]*Participant)
	var order []string
	var current *Participant

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := speakerPattern.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			if interviewerLabels[name] {
				current = nil
			} else {
				p, ok := byName[name]
				if !ok {
					p = &Participant{Name: name}
					byName[name] = p
					order = append(order, name)
				}
				current = p
			}
			line = strings.TrimSpace(line[len(m[0]):])
			if line == "" {
				continue
			}
		}

		if current == nil {
			continue
		}

		if current.Grade == "" {
			if m := gradePattern.FindString(line); m != "" {
				current.Grade = strings.ReplaceAll(m, " ", "")
			}
		}
		if current.Age == 0 {
			if m := agePattern.FindStringSubmatch(line); m != nil {
				if age, err := strconv.Atoi(m[1]); err == nil {
					current.Age = age
				}
			}
		}
		if current.School == "" {
			if m := schoolPattern.FindString(line); m != "" {
				current.School = m
			}
		}
	}

	participants := make([]Participant, 0, len(order))
	for _, name := range order {
		participants = append(participants, *byName[name])
	}
	return participants
}
