package github

// Release is one entry of the releases listing as the API returns it.
// Name and Body may be null.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       *string `json:"name"`
	Body       *string `json:"body"`
	CreatedAt  string  `json:"created_at"`
	HTMLURL    string  `json:"html_url"`
	Prerelease bool    `json:"prerelease"`
	Draft      bool    `json:"draft"`
}

// Published reports whether the release is a final, public release.
func (r Release) Published() bool {
	return !r.Draft && !r.Prerelease
}
