package types

// CaptureState is the state of an add-memory capture session.
type CaptureState string

const (
	CaptureIdle      CaptureState = "idle"      // Drafting, nothing in flight
	CaptureAnalyzing CaptureState = "analyzing" // AI analysis call in flight
	CaptureReviewing CaptureState = "reviewing" // Analysis ready for the user to edit
	CaptureSaving    CaptureState = "saving"    // Persisting the merged record
	CaptureSuccess   CaptureState = "success"   // Last save succeeded
	CaptureError     CaptureState = "error"     // Last step failed, see message
)

// ViewState is the outcome of loading a list or detail view.
type ViewState string

const (
	ViewLoading ViewState = "loading"
	ViewEmpty   ViewState = "empty"
	ViewSuccess ViewState = "success"
	ViewError   ViewState = "error"
)
