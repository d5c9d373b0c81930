package shelly

// RPC request/response shapes for the Shelly Gen2 HTTP interface.

// statusRequest is the body of a Shelly.GetStatus call.
type statusRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
}

// switchSetRequest is the body of a Switch.Set call.
type switchSetRequest struct {
	ID int  `json:"id"`
	On bool `json:"on"`
}

// SwitchStatus is the per-switch entry of a Shelly.GetStatus response.
// Output is a pointer so a missing field can be told apart from false.
type SwitchStatus struct {
	Output *bool `json:"output"`
}
