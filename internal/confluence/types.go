package confluence

// Page is the content representation returned by the REST API. Only the
// fields the publisher consumes are mapped.
type Page struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type"`
	Status    string     `json:"status,omitempty"`
	Title     string     `json:"title"`
	Space     *Space     `json:"space,omitempty"`
	Version   *Version   `json:"version,omitempty"`
	Body      *Body      `json:"body,omitempty"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
	Links     *Links     `json:"_links,omitempty"`
}

// VersionNumber returns the page's version number, or 0 when the API
// response did not expand the version field.
func (p *Page) VersionNumber() int {
	if p.Version == nil {
		return 0
	}
	return p.Version.Number
}

// WebUI returns the page's web UI path, or empty when absent.
func (p *Page) WebUI() string {
	if p.Links == nil {
		return ""
	}
	return p.Links.WebUI
}

// Space identifies the wiki space a page belongs to.
type Space struct {
	Key string `json:"key"`
}

// Version carries the optimistic-concurrency counter. Updates must send the
// fetched number incremented by exactly one.
type Version struct {
	Number int `json:"number"`
}

// Body wraps the storage-format page content.
type Body struct {
	Storage Storage `json:"storage"`
}

// Storage is the native markup representation of a page body.
type Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// Ancestor references a parent page by ID.
type Ancestor struct {
	ID string `json:"id"`
}

// Links holds the subset of _links the publisher uses.
type Links struct {
	WebUI string `json:"webui"`
}

// Attachment is a file attached to a page, matched by its title (filename).
type Attachment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type searchResponse struct {
	Results []Page `json:"results"`
}

type attachmentListResponse struct {
	Results []Attachment `json:"results"`
}
