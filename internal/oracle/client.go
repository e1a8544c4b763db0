package oracle

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/mask"
	"go.uber.org/zap"
)

// ClientConfig holds the paths and device the segmentation service runs
// with.
type ClientConfig struct {
	// ScriptPath is the service script. Empty means discover it next
	// to the executable or in the project tree.
	ScriptPath string
	// CheckpointPath is the model checkpoint handed to the service.
	CheckpointPath string
	// ModelConfigPath is the model configuration handed to the service.
	ModelConfigPath string
	Device          Device
}

// Client drives the segmentation model through a Python subprocess.
// Commands are JSON lines on stdin; responses are JSON lines on stdout.
// The process is started lazily on first use.
type Client struct {
	config ClientConfig
	log    *zap.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	streaming bool
}

// NewClient creates a segmentation service client. It fails when the
// service script cannot be located.
func NewClient(config ClientConfig, log *zap.Logger) (*Client, error) {
	if config.ScriptPath == "" {
		config.ScriptPath = findServiceScript()
	}
	if config.ScriptPath == "" {
		return nil, fmt.Errorf("segment_service.py not found")
	}
	if config.Device.Kind == "" {
		config.Device = CPUDevice()
	}
	return &Client{config: config, log: log}, nil
}

// ClientFactory returns a Factory that builds clients sharing this
// client's paths but bound to the requested device.
func (c *Client) ClientFactory() Factory {
	return func(d Device) (Oracle, error) {
		cfg := c.config
		cfg.Device = d
		return NewClient(cfg, c.log)
	}
}

// Zero is a valid frame index and object id, so the integer fields are
// always emitted.
type command struct {
	Op        string   `json:"op"`
	FramesDir string   `json:"frames_dir,omitempty"`
	Frame     int      `json:"frame"`
	Object    int      `json:"object"`
	Points    [][3]int `json:"points,omitempty"`
}

type wireMask struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Counts []int `json:"counts"`
}

type response struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`

	// Propagation stream fields.
	Event   string `json:"event,omitempty"`
	Frame   int    `json:"frame"`
	Objects []struct {
		ID   int      `json:"id"`
		Mask wireMask `json:"mask"`
	} `json:"objects,omitempty"`

	Mask *wireMask `json:"mask,omitempty"`
}

// Init points the service at an extracted frame directory.
func (c *Client) Init(ctx context.Context, framesDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return err
	}
	resp, err := c.roundTrip(ctx, command{Op: "init", FramesDir: framesDir})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

// AddPoints submits annotation points for one frame and returns the seed
// mask the service produced.
func (c *Client) AddPoints(ctx context.Context, frameIdx, objectID int, points []annotate.Point) (*mask.Mask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return nil, err
	}

	wire := make([][3]int, len(points))
	for i, p := range points {
		wire[i] = [3]int{p.X, p.Y, int(p.Label)}
	}

	resp, err := c.roundTrip(ctx, command{Op: "add_points", Frame: frameIdx, Object: objectID, Points: wire})
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	if resp.Mask == nil {
		return nil, &RejectedError{Reason: "service returned no mask"}
	}
	return mask.FromRLE(resp.Mask.Width, resp.Mask.Height, resp.Mask.Counts)
}

// Propagate starts a forward sweep. The returned sequence must be
// consumed (or abandoned) before the next command; an abandoned stream is
// drained automatically.
func (c *Client) Propagate(ctx context.Context) (Sequence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return nil, err
	}
	if err := c.send(command{Op: "propagate"}); err != nil {
		return nil, err
	}
	c.streaming = true
	return &clientSequence{client: c}, nil
}

// Close shuts the service process down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}

type clientSequence struct {
	client *Client
	done   bool
}

func (s *clientSequence) Next(ctx context.Context) (*Step, error) {
	if s.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.client.readResponse()
	if err != nil {
		s.done = true
		s.client.streaming = false
		return nil, fmt.Errorf("read propagation step: %w", err)
	}

	if resp.Event == "done" {
		s.done = true
		s.client.streaming = false
		return nil, nil
	}
	if err := statusErr(resp); err != nil {
		s.done = true
		s.client.streaming = false
		return nil, err
	}

	step := &Step{Frame: resp.Frame, Objects: make([]ObjectMask, 0, len(resp.Objects))}
	for _, o := range resp.Objects {
		m, err := mask.FromRLE(o.Mask.Width, o.Mask.Height, o.Mask.Counts)
		if err != nil {
			s.done = true
			s.client.streaming = false
			return nil, fmt.Errorf("decode mask for frame %d object %d: %w", resp.Frame, o.ID, err)
		}
		step.Objects = append(step.Objects, ObjectMask{ID: o.ID, Mask: m})
	}
	return step, nil
}

func (c *Client) roundTrip(ctx context.Context, cmd command) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.drainStream(); err != nil {
		return nil, err
	}
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	return c.readResponse()
}

func (c *Client) send(cmd command) error {
	if err := c.drainStream(); err != nil {
		return err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (c *Client) readResponse() (*response, error) {
	line, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// drainStream discards the remainder of an abandoned propagation stream
// so the next command sees its own response.
func (c *Client) drainStream() error {
	for c.streaming {
		resp, err := c.readResponse()
		if err != nil {
			c.streaming = false
			return err
		}
		if resp.Event == "done" || resp.Status == "oom" || resp.Status == "error" {
			c.streaming = false
		}
	}
	return nil
}

func statusErr(resp *response) error {
	switch resp.Status {
	case "", "ok":
		return nil
	case "oom":
		return ErrResourceExhausted
	case "rejected":
		return &RejectedError{Reason: resp.Reason}
	default:
		return fmt.Errorf("oracle service error: %s", resp.Error)
	}
}

func (c *Client) ensureStarted() error {
	if c.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{
		c.config.ScriptPath,
		"--device", c.config.Device.Kind,
	}
	if c.config.CheckpointPath != "" {
		args = append(args, "--checkpoint", c.config.CheckpointPath)
	}
	if c.config.ModelConfigPath != "" {
		args = append(args, "--model-config", c.config.ModelConfigPath)
	}
	if c.config.Device.MixedPrecision {
		args = append(args, "--mixed-precision")
	}

	c.cmd = exec.Command(pythonPath, args...)

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	c.cmd.Stderr = os.Stderr

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start segmentation service: %w", err)
	}

	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	c.log.Info("segmentation service started",
		zap.String("script", c.config.ScriptPath),
		zap.String("device", c.config.Device.Kind))

	return nil
}

func (c *Client) shutdown() error {
	if !c.started {
		return nil
	}
	if c.stdin != nil {
		c.stdin.Close()
	}
	err := c.cmd.Wait()
	c.started = false
	c.streaming = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
	return err
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/segment_service.py",
		"../scripts/segment_service.py",
		filepath.Join(execDir, "scripts/segment_service.py"),
		filepath.Join(os.Getenv("HOME"), ".vidseg/scripts/segment_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment
// near the executable or project root.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".vidseg/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
