package ir

// Checkpoint is a resumable snapshot of closure state taken between passes.
//
// Terms and Images are parallel to Elements; each is nil when the run does
// not track terms or a homomorphism.
type Checkpoint struct {
	Pass        int
	ClosedMark  int
	CurrentMark int
	Completed   bool
	Elements    []Element
	Terms       []Term
	Images      []int
}
