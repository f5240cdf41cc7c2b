package forward

import "time"

// Status is the lifecycle state of one tunnel.
// starting -> running -> {stopped, error}, running -> stopping -> stopped.
// stopped and error are terminal and always release the port reservation.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusError
}

// Forward describes one local-to-remote port tunnel.
type Forward struct {
	ID         string     `json:"forward_id"`
	ServerName string     `json:"server_name"`
	Name       string     `json:"name"`
	RemotePort int        `json:"remote_port"`
	LocalPort  int        `json:"local_port"`
	ToolType   string     `json:"tool_type"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Tool is a port suggestion for a commonly forwarded service.
type Tool struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DefaultPort int    `json:"default_port"`
	Description string `json:"description"`
}

// ToolSuggestions returns default ports for the visualization tools
// operators usually forward.
func ToolSuggestions() []Tool {
	return []Tool{
		{Name: "TensorBoard", Type: "tensorboard", DefaultPort: 6006, Description: "TensorFlow visualization"},
		{Name: "MLflow", Type: "mlflow", DefaultPort: 5000, Description: "ML experiment tracking"},
		{Name: "Jupyter", Type: "jupyter", DefaultPort: 8888, Description: "Jupyter Notebook"},
		{Name: "Weights & Biases", Type: "wandb", DefaultPort: 8080, Description: "W&B local server"},
		{Name: "Visdom", Type: "visdom", DefaultPort: 8097, Description: "PyTorch visualization"},
	}
}
