package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/recycle-ai/recycle/internal/prediction"
	"github.com/recycle-ai/recycle/internal/redact"
)

// Options controls how LoadModel finds and configures the model.
type Options struct {
	ModelFile         string // default "model.onnx"
	MetadataFile      string // default "metadata.json"
	SharedLibraryPath string
	InputName         string // discovered when empty
	OutputName        string // discovered when empty
	IntraOpThreads    int
}

// Model is an image classifier backed by an ONNX session. Predict calls are
// serialized because the input and output tensors are reused.
type Model struct {
	session *ort.AdvancedSession
	labels  []string
	size    int
	layout  Layout

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadModel initializes onnxruntime and opens the model in dir.
func LoadModel(dir string, opts Options) (*Model, error) {
	if dir == "" {
		return nil, errors.New("model dir is empty")
	}
	if opts.ModelFile == "" {
		opts.ModelFile = "model.onnx"
	}
	if opts.MetadataFile == "" {
		opts.MetadataFile = "metadata.json"
	}
	start := time.Now()

	libPath := resolveSharedLibraryPath(dir, opts.SharedLibraryPath)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(dir, opts.ModelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}
	md, err := loadMetadata(filepath.Join(dir, opts.MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	inputName, inputDims, outputName, err := selectIO(modelPath, opts.InputName, opts.OutputName)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	size, layout := inputGeometry(inputDims, md.ImageSize)

	inputShape := ort.NewShape(1, int64(size), int64(size), 3)
	if layout == LayoutNCHW {
		inputShape = ort.NewShape(1, 3, int64(size), int64(size))
	}
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(md.Labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	sessOpts, err := newSessionOptions(opts.IntraOpThreads)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	if sessOpts != nil {
		defer sessOpts.Destroy()
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		sessOpts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	redact.Logf("classifier: model loaded dir=%s labels=%d size=%d took=%s", dir, len(md.Labels), size, time.Since(start).Round(time.Millisecond))

	return &Model{
		session: session,
		labels:  md.Labels,
		size:    size,
		layout:  layout,
		input:   input,
		output:  output,
	}, nil
}

// Labels returns the fixed label vocabulary in output order.
func (m *Model) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Predict returns one entry per label, in label order.
func (m *Model) Predict(ctx context.Context, data []byte) ([]prediction.Entry, error) {
	if m == nil || m.session == nil {
		return nil, errors.New("classifier model not initialized")
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	pixels := Preprocess(img, m.size, m.layout)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), pixels)
	if err := m.session.Run(); err != nil {
		return nil, &InferenceError{Op: "run", Err: err}
	}
	return entries(m.labels, scores(m.output.GetData())), nil
}

// Close releases the session and tensors.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
		m.input = nil
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
		m.output = nil
	}
	return errors.Join(errs...)
}

func newSessionOptions(intraThreads int) (*ort.SessionOptions, error) {
	if intraThreads <= 0 {
		return nil, nil
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(intraThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	return opts, nil
}

func selectIO(modelPath, wantIn, wantOut string) (string, []int64, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", nil, "", err
	}
	if len(inputs) == 0 {
		return "", nil, "", fmt.Errorf("no inputs found")
	}
	if len(outputs) == 0 {
		return "", nil, "", fmt.Errorf("no outputs found")
	}

	in := inputs[0]
	if wantIn != "" {
		found := false
		for _, i := range inputs {
			if i.Name == wantIn {
				in, found = i, true
				break
			}
		}
		if !found {
			return "", nil, "", fmt.Errorf("input %q not found", wantIn)
		}
	}

	outName := outputs[0].Name
	if wantOut != "" {
		found := false
		for _, o := range outputs {
			if o.Name == wantOut {
				found = true
				break
			}
		}
		if !found {
			return "", nil, "", fmt.Errorf("output %q not found", wantOut)
		}
		outName = wantOut
	} else if len(outputs) > 1 {
		return "", nil, "", fmt.Errorf("multiple outputs found; set model.output_name")
	}
	return in.Name, in.Dimensions, outName, nil
}

// inputGeometry reads the square side and channel layout from a rank-4
// input. Dynamic dimensions fall back to the metadata size.
func inputGeometry(dims []int64, fallback int) (int, Layout) {
	if len(dims) != 4 {
		return fallback, LayoutNHWC
	}
	if dims[1] == 3 && dims[3] != 3 {
		if dims[2] > 0 {
			return int(dims[2]), LayoutNCHW
		}
		return fallback, LayoutNCHW
	}
	if dims[1] > 0 {
		return int(dims[1]), LayoutNHWC
	}
	return fallback, LayoutNHWC
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins, then the configured path, then common locations.
func resolveSharedLibraryPath(modelDir, configured string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
