// Package tflite runs a Segment-Anything style encoder/decoder pair on the
// TensorFlow Lite C runtime.
package tflite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"strings"

	tf "github.com/tphakala/go-tflite"

	"github.com/maulik225/NotumAi/internal/segment"
	"github.com/maulik225/NotumAi/internal/segment/sam"
	"github.com/maulik225/NotumAi/internal/vision"
)

// Config points at the two model files.
type Config struct {
	EncoderPath string
	DecoderPath string
	// Threads is the interpreter thread count; <= 0 uses all CPUs.
	Threads int
}

// Model implements segment.Model. It is not safe for concurrent use;
// segment.Service serialises calls.
type Model struct {
	encoder   *tf.Interpreter
	decoder   *tf.Interpreter
	inputSize int
	chw       bool
	threads   int
	logger    *slog.Logger
}

var _ segment.Model = (*Model)(nil)

// Load reads both models and allocates their interpreters.
func Load(cfg Config) (*Model, error) {
	if cfg.EncoderPath == "" || cfg.DecoderPath == "" {
		return nil, errors.New("encoder and decoder model paths are required")
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	m := &Model{threads: threads, logger: slog.Default()}

	var err error
	if m.encoder, err = m.newInterpreter(cfg.EncoderPath); err != nil {
		return nil, fmt.Errorf("loading encoder: %w", err)
	}
	if m.decoder, err = m.newInterpreter(cfg.DecoderPath); err != nil {
		m.encoder.Delete()
		return nil, fmt.Errorf("loading decoder: %w", err)
	}

	in := m.encoder.GetInputTensor(0)
	if in == nil || in.NumDims() != 4 {
		m.Close()
		return nil, errors.New("encoder input must be a 4-d image tensor")
	}
	// [1,3,S,S] or [1,S,S,3]
	if in.Dim(1) == 3 {
		m.chw = true
		m.inputSize = in.Dim(2)
	} else {
		m.inputSize = in.Dim(1)
	}

	m.logger.Info("segmentation model loaded",
		"encoder", cfg.EncoderPath, "decoder", cfg.DecoderPath,
		"input_size", m.inputSize, "threads", threads)
	return m, nil
}

func (m *Model) newInterpreter(path string) (*tf.Interpreter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model := tf.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model %s", path)
	}

	options := tf.NewInterpreterOptions()
	options.SetNumThread(m.threads)
	options.SetErrorReporter(func(msg string, _ any) {
		m.logger.Error("TFLite error", "message", msg)
	}, nil)

	interp := tf.NewInterpreter(model, options)
	if interp == nil {
		return nil, errors.New("cannot create interpreter")
	}
	if status := interp.AllocateTensors(); status != tf.OK {
		interp.Delete()
		return nil, errors.New("tensor allocation failed")
	}
	return interp, nil
}

// Name implements segment.Model.
func (m *Model) Name() string {
	return fmt.Sprintf("tflite cpu x%d", m.threads)
}

// Close releases both interpreters.
func (m *Model) Close() {
	if m.encoder != nil {
		m.encoder.Delete()
		m.encoder = nil
	}
	if m.decoder != nil {
		m.decoder.Delete()
		m.decoder = nil
	}
}

// Encode implements segment.Model.
func (m *Model) Encode(ctx context.Context, img *image.NRGBA) (segment.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return segment.Embedding{}, err
	}
	b := img.Bounds()
	frame := sam.NewFrame(b.Dx(), b.Dy(), m.inputSize)

	input := m.encoder.GetInputTensor(0)
	copy(input.Float32s(), frame.Pixels(img, m.chw))
	if status := m.encoder.Invoke(); status != tf.OK {
		return segment.Embedding{}, errors.New("encoder invoke failed")
	}

	out := m.encoder.GetOutputTensor(0)
	emb := segment.Embedding{
		Data:  append([]float32(nil), out.Float32s()...),
		Shape: dims(out),
	}
	return emb, nil
}

// Predict implements segment.Model. The decoder's first mask is the
// single-mask prediction; further candidates are ignored.
func (m *Model) Predict(ctx context.Context, emb segment.Embedding, encW, encH int, points []segment.Coord) (segment.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return segment.Prediction{}, err
	}
	frame := sam.NewFrame(encW, encH, m.inputSize)
	coords, labels := frame.Prompt(points)
	n := int32(len(labels))

	idx := m.decoderInputs()
	if status := m.decoder.ResizeInputTensor(idx.coords, []int32{1, n, 2}); status != tf.OK {
		return segment.Prediction{}, errors.New("resizing point coords failed")
	}
	if status := m.decoder.ResizeInputTensor(idx.labels, []int32{1, n}); status != tf.OK {
		return segment.Prediction{}, errors.New("resizing point labels failed")
	}
	if status := m.decoder.AllocateTensors(); status != tf.OK {
		return segment.Prediction{}, errors.New("decoder tensor allocation failed")
	}

	copy(m.decoder.GetInputTensor(idx.embeddings).Float32s(), emb.Data)
	copy(m.decoder.GetInputTensor(idx.coords).Float32s(), coords)
	copy(m.decoder.GetInputTensor(idx.labels).Float32s(), labels)
	if idx.maskInput >= 0 {
		clear(m.decoder.GetInputTensor(idx.maskInput).Float32s())
	}
	if idx.hasMask >= 0 {
		clear(m.decoder.GetInputTensor(idx.hasMask).Float32s())
	}

	if status := m.decoder.Invoke(); status != tf.OK {
		return segment.Prediction{}, errors.New("decoder invoke failed")
	}

	masks, scores := m.decoderOutputs()
	if masks == nil {
		return segment.Prediction{}, errors.New("decoder produced no mask tensor")
	}
	// [1, K, h, w]
	h, w := masks.Dim(2), masks.Dim(3)
	var iou []float32
	if scores != nil {
		iou = scores.Float32s()
	}
	low, score := sam.SingleMask(masks.Float32s(), iou, w, h)
	if low == nil {
		return segment.Prediction{}, errors.New("decoder mask tensor is empty")
	}

	polygon, err := vision.TracePolygon(frame.Upsample(low, w, h, encW, encH), encW, encH, 0)
	if err != nil {
		return segment.Prediction{}, fmt.Errorf("tracing mask: %w", err)
	}
	return segment.Prediction{Polygon: polygon, Score: score}, nil
}

type decoderIndex struct {
	embeddings, coords, labels, maskInput, hasMask int
}

// decoderInputs locates the decoder inputs by name, falling back to the
// usual export order.
func (m *Model) decoderInputs() decoderIndex {
	idx := decoderIndex{embeddings: 0, coords: 1, labels: 2, maskInput: -1, hasMask: -1}
	count := m.decoder.GetInputTensorCount()
	if count > 3 {
		idx.maskInput = 3
	}
	if count > 4 {
		idx.hasMask = 4
	}
	for i := 0; i < count; i++ {
		name := strings.ToLower(m.decoder.GetInputTensor(i).Name())
		switch {
		case strings.Contains(name, "embed"):
			idx.embeddings = i
		case strings.Contains(name, "coord"):
			idx.coords = i
		case strings.Contains(name, "label"):
			idx.labels = i
		case strings.Contains(name, "has_mask"):
			idx.hasMask = i
		case strings.Contains(name, "mask_input"):
			idx.maskInput = i
		}
	}
	return idx
}

// decoderOutputs returns the 4-d mask tensor and the IoU score tensor.
func (m *Model) decoderOutputs() (masks, scores *tf.Tensor) {
	for i := 0; i < m.decoder.GetOutputTensorCount(); i++ {
		t := m.decoder.GetOutputTensor(i)
		if t.NumDims() == 4 && masks == nil {
			masks = t
		} else if scores == nil {
			scores = t
		}
	}
	return masks, scores
}

func dims(t *tf.Tensor) []int {
	out := make([]int, t.NumDims())
	for i := range out {
		out[i] = t.Dim(i)
	}
	return out
}
