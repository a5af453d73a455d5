package store

import "time"

type File struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
}

type Symbol struct {
	ID             int64
	FileID         *int64
	Name           string
	Kind           string
	Container      string
	Visibility     string
	Modifiers      []string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	ParentSymbolID *int64

	// Path is filled in by queries that join the owning file.
	Path string
}
