package pipeline

// Context is the mutable per-run record shared across steps. Steps
// communicate through the Meta map; the engine records per-step outcomes in
// Results. A Context is confined to one run and is never accessed
// concurrently.
type Context struct {
	DocumentID       string
	UserID           string
	OriginalFilename string

	// FilePath is the raw upload on disk, the first step's input.
	FilePath string

	Meta    map[string]any
	Results map[string]StepResult
}

// NewContext creates a run context for one document.
func NewContext(docID, userID, originalFilename, filePath string) *Context {
	return &Context{
		DocumentID:       docID,
		UserID:           userID,
		OriginalFilename: originalFilename,
		FilePath:         filePath,
		Meta:             make(map[string]any),
		Results:          make(map[string]StepResult),
	}
}

// Set stores a metadata value under key.
func (c *Context) Set(key string, value any) {
	c.Meta[key] = value
}

// GetString returns the metadata value for key if it is a string.
func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.Meta[key].(string)
	return v, ok
}

// GetInt returns the metadata value for key if it is an int.
func (c *Context) GetInt(key string) (int, bool) {
	v, ok := c.Meta[key].(int)
	return v, ok
}
