package domain

// VisualKind is the category of a planned visualization.
type VisualKind string

const (
	VisualChart VisualKind = "chart"
	VisualTable VisualKind = "table"
	VisualImage VisualKind = "image"
)

// SupportedVisualKind reports whether the renderer has a real handler for k.
// Anything else degrades to an unsupported-type marker, not an error.
func SupportedVisualKind(k VisualKind) bool {
	switch k {
	case VisualChart, VisualTable, VisualImage:
		return true
	}
	return false
}

// VisualRequest is one planned visualization: what kind of figure to
// produce and the sentence describing it.
type VisualRequest struct {
	Kind VisualKind `json:"type"`
	Text string     `json:"text"`
}

// VisualResult pairs a request with its artifact reference. Ref is either a
// resolvable storage URL or an inline marker string such as
// "[Image not created: ...]" — rendering never fails a batch.
type VisualResult struct {
	Kind VisualKind `json:"type"`
	Text string     `json:"text"`
	Ref  string     `json:"url"`
}

// Section types inside a FinalOutput. Visual sections carry the kind of
// their VisualResult ("chart", "table", "image") as the type value.
const (
	SectionSource    = "source"
	SectionParagraph = "paragraph"
)

// Section is one ordered unit of the merged report. Exactly one of
// Content/Src is set: Content for source/paragraph sections, Src for
// visual sections.
type Section struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Src     string `json:"src,omitempty"`
}

// FinalOutput is the wire shape downstream report viewers depend on.
// Field names are a compatibility contract — do not rename.
type FinalOutput struct {
	Format     string    `json:"format"`
	YoutubeURL string    `json:"youtube_url"`
	Sections   []Section `json:"sections"`
}

// PipelineState is the working record threaded through the pipeline steps.
// Steps receive a snapshot by value and return an updated copy; no step
// touches fields owned by earlier steps.
type PipelineState struct {
	JobID      JobID
	UserID     string
	YoutubeURL string

	Caption       string
	ReportText    string
	VisualPlan    []VisualRequest
	VisualResults []VisualResult
	FinalOutput   *FinalOutput
}
