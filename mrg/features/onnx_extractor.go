//go:build onnx
// +build onnx

package features

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/mat"
)

// onnxExtractor runs a visual backbone exported to ONNX. The model takes one
// float image [1,C,H,W] and returns patch features, either [1,D,h,w] or
// [1,P,D], optionally followed by a pooled [1,D] output.
type onnxExtractor struct {
	opts        Options
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
}

func newONNXExtractor(opts Options) Extractor {
	return &onnxExtractor{opts: opts}
}

func (e *onnxExtractor) Shape() (int, int) { return e.opts.Regions, e.opts.Dims }

func (e *onnxExtractor) ensureSession() error {
	if e.session != nil {
		return nil
	}
	if e.opts.ModelPath == "" {
		return fmt.Errorf("onnx model path is required")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(e.opts.ModelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	for _, ii := range ins {
		if ii.DataType == ort.TensorElementDataTypeFloat {
			e.inputName = ii.Name
			break
		}
	}
	if e.inputName == "" {
		return fmt.Errorf("could not determine ONNX image input")
	}
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat {
			e.outputNames = append(e.outputNames, oi.Name)
			if len(e.outputNames) == 2 {
				break
			}
		}
	}
	if len(e.outputNames) == 0 {
		return fmt.Errorf("could not determine ONNX feature outputs")
	}

	var opts *ort.SessionOptions
	ep := strings.ToLower(strings.TrimSpace(e.opts.ExecutionProvider))
	if ep != "" && ep != "cpu" {
		if o, oerr := ort.NewSessionOptions(); oerr == nil {
			_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
			switch ep {
			case "cuda":
				if cu, e2 := ort.NewCUDAProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderCUDA(cu)
					_ = cu.Destroy()
				}
			case "tensorrt":
				if trt, e2 := ort.NewTensorRTProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderTensorRT(trt)
					_ = trt.Destroy()
				}
			case "coreml":
				_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
			case "dml":
				_ = o.AppendExecutionProviderDirectML(e.opts.DeviceID)
			}
			opts = o
		}
	}
	s, err := ort.NewDynamicAdvancedSession(e.opts.ModelPath, []string{e.inputName}, e.outputNames, opts)
	if opts != nil {
		_ = opts.Destroy()
	}
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	e.session = s
	return nil
}

func (e *onnxExtractor) Extract(ctx context.Context, img Image) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, err
	}
	// a DynamicAdvancedSession is not safe for concurrent Run calls
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureSession(); err != nil {
		return Pair{}, err
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(img.Channels), int64(img.Height), int64(img.Width)), img.Data)
	if err != nil {
		return Pair{}, fmt.Errorf("image tensor: %w", err)
	}
	defer in.Destroy()

	outs := make([]ort.Value, len(e.outputNames))
	if err := e.session.Run([]ort.Value{in}, outs); err != nil {
		return Pair{}, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	att, err := attentionFromOutput(outs[0])
	if err != nil {
		return Pair{}, err
	}
	pair := Pair{Attention: att, Global: meanRows(att)}
	if len(outs) > 1 {
		t, ok := outs[1].(*ort.Tensor[float32])
		if !ok {
			return Pair{}, fmt.Errorf("unexpected pooled output type")
		}
		data := t.GetData()
		g := make([]float64, len(data))
		for i, v := range data {
			g[i] = float64(v)
		}
		pair.Global = mat.NewVecDense(len(g), g)
	}
	return pair, nil
}

func attentionFromOutput(v ort.Value) (*mat.Dense, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected feature output type")
	}
	data := t.GetData()
	shape := t.GetShape()
	switch len(shape) {
	case 4:
		// [1, D, h, w] -> (h*w) x D
		d, regions := int(shape[1]), int(shape[2]*shape[3])
		att := mat.NewDense(regions, d, nil)
		for c := 0; c < d; c++ {
			for r := 0; r < regions; r++ {
				att.Set(r, c, float64(data[c*regions+r]))
			}
		}
		return att, nil
	case 3:
		regions, d := int(shape[1]), int(shape[2])
		att := mat.NewDense(regions, d, nil)
		for r := 0; r < regions; r++ {
			for c := 0; c < d; c++ {
				att.Set(r, c, float64(data[r*d+c]))
			}
		}
		return att, nil
	default:
		return nil, fmt.Errorf("%w: unexpected feature output rank %d", common.ErrShapeMismatch, len(shape))
	}
}
