package models

// ModuleType distinguishes how a course module is rendered by the player.
type ModuleType string

const (
	ModuleVideo ModuleType = "video"
	ModuleSlide ModuleType = "slide"
	ModuleQuiz  ModuleType = "quiz"
)

// CourseModule is a single unit inside a course. Modules unlock sequentially:
// the player may only open module n once modules 0..n-1 are completed.
type CourseModule struct {
	Title    string     `json:"title"`
	Type     ModuleType `json:"type"`
	Duration string     `json:"duration,omitempty"`
	Content  string     `json:"content,omitempty"` // video/slide URL or quiz payload
}

// Course represents a sellable course in the catalog.
type Course struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Image       string         `json:"image"`
	Category    string         `json:"category"`
	Level       string         `json:"level"`
	Modules     []CourseModule `json:"modules"`
}

// Resource represents a downloadable resource. Free resources have Price 0
// and skip checkout entirely.
type Resource struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Category string  `json:"category"`
	FileURL  string  `json:"file_url"`
}
