package tools

// Argument types for each tool. Optional fields that must be told apart from
// their zero value are pointers.

type CreateProjectArgs struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type GetProjectArgs struct {
	Name string `json:"name" validate:"required"`
}

type UpdateProjectArgs struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	Memory      *string `json:"memory"`
}

type CreateFlashcardArgs struct {
	Project string   `json:"project" validate:"required"`
	Front   string   `json:"front" validate:"required"`
	Back    string   `json:"back" validate:"required"`
	Tags    []string `json:"tags"`
}

type EditFlashcardArgs struct {
	ID    string    `json:"id" validate:"required"`
	Front *string   `json:"front"`
	Back  *string   `json:"back"`
	Tags  *[]string `json:"tags"`
}

type DueFlashcardsArgs struct {
	Project string `json:"project"`
	Tag     string `json:"tag"`
	Limit   *int   `json:"limit" validate:"omitempty,min=1"`
}

type ReviewFlashcardArgs struct {
	ID      string `json:"id" validate:"required"`
	Quality int    `json:"quality" validate:"min=1,max=4"`
}

// FlashcardIDArgs identifies a single card.
type FlashcardIDArgs struct {
	ID string `json:"id" validate:"required"`
}

type ListFlashcardsArgs struct {
	Project string `json:"project"`
	Tag     string `json:"tag"`
	OrderBy string `json:"order_by" validate:"omitempty,oneof=created_at next_review"`
	Order   string `json:"order" validate:"omitempty,oneof=asc desc"`
	Offset  int    `json:"offset" validate:"min=0"`
	Limit   *int   `json:"limit" validate:"omitempty,min=0"`
}
