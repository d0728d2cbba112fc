package backendapi

import "time"

// Lesson is one sign-language lesson as served by the learning API.
type Lesson struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	VideoURL    string `json:"video_url"`
	Description string `json:"description"`
}

// Progress is a user's overall learning progress.
type Progress struct {
	UserID           string    `json:"user_id"`
	CompletedLessons []string  `json:"completed_lessons"`
	TotalLessons     int       `json:"total_lessons"`
	Percent          float64   `json:"percent"`
	LastLessonID     string    `json:"last_lesson_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Streak tracks consecutive practice days.
type Streak struct {
	UserID         string    `json:"user_id"`
	Current        int       `json:"current"`
	Longest        int       `json:"longest"`
	LastPracticeAt time.Time `json:"last_practice_at"`
}

// Profile is a user's public profile.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Level       string    `json:"level"`
	JoinedAt    time.Time `json:"joined_at"`
}

// CompleteLessonRequest marks a lesson as finished.
type CompleteLessonRequest struct {
	LessonID string `json:"lesson_id"`
	Score    int    `json:"score,omitempty"`
}

// UpdateStreakRequest records a practice session.
type UpdateStreakRequest struct {
	PracticedAt time.Time `json:"practiced_at"`
}
