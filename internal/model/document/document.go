package document

// Context is the text of the document the user uploaded into a session. A session
// holds at most one; a new upload replaces it wholesale.
type Context struct {
	SourceName string `json:"sourceName"`
	Text       string `json:"text"`
}

// Empty reports whether no document text is available.
func (c Context) Empty() bool {
	return c.Text == ""
}
