// MODUL: llava/helpers_test
// ZWECK: Gemeinsame Test-Hilfen (Fake-Tower, Fake-Store, Gewichte)
// INPUT: Keine
// OUTPUT: Testbare Modell-Instanzen
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: testing, pdevine/tensor
// HINWEISE: Der Fake-Tower markiert das CLS-Token jeder Sequenz mit
// clsMarker damit Tests den Token-Drop nachweisen koennen

package llava

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/apinge/lightllm/embedcache"
	"github.com/apinge/lightllm/vision"
	"github.com/apinge/lightllm/vision/backend"
)

// clsMarker ist der Wert des CLS-Tokens im Fake-Tower Output.
const clsMarker = float32(999)

// fakeTower liefert deterministische Hidden-States: Schicht l hat den
// konstanten Wert layerValue(l), nur Token 0 traegt clsMarker.
type fakeTower struct {
	layers int
	seq    int
	hidden int

	device      string
	moveCalls   int
	closeCalled bool
}

func layerValue(l int) float32 {
	return float32(l) * 0.1
}

func (f *fakeTower) ForwardHiddenStates(pixels *tensor.Dense) ([]*tensor.Dense, error) {
	batch := pixels.Shape()[0]
	out := make([]*tensor.Dense, f.layers+1)

	for l := range out {
		backing := make([]float32, batch*f.seq*f.hidden)
		for i := range backing {
			backing[i] = layerValue(l)
		}
		for b := 0; b < batch; b++ {
			for d := 0; d < f.hidden; d++ {
				backing[b*f.seq*f.hidden+d] = clsMarker
			}
		}
		out[l] = tensor.New(
			tensor.WithShape(batch, f.seq, f.hidden),
			tensor.WithBacking(backing),
		)
	}

	return out, nil
}

func (f *fakeTower) ToDevice(device string) error {
	f.moveCalls++
	f.device = device
	return nil
}

func (f *fakeTower) Info() vision.TowerInfo {
	return vision.TowerInfo{Backend: "fake", HiddenSize: f.hidden, NumLayers: f.layers}
}

func (f *fakeTower) Close() error {
	f.closeCalled = true
	return nil
}

// fakeStore haelt Blobs im Speicher.
type fakeStore struct {
	blobs map[uuid.UUID][]byte
}

func (s *fakeStore) ReadData(id uuid.UUID) ([]byte, error) {
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", embedcache.ErrBlobNotFound, id)
	}
	return data, nil
}

// identityWeights baut Projector-Gewichte mit Einheitsmatrizen und
// Null-Bias; der Projector wird damit zu einer reinen GELU.
func identityWeights(dim int) map[string]*weight {
	eye := func() []float32 {
		w := make([]float32, dim*dim)
		for i := 0; i < dim; i++ {
			w[i*dim+i] = 1
		}
		return w
	}
	zeros := func() []float32 { return make([]float32, dim) }

	return map[string]*weight{
		KeyProjector0Weight: {shape: []int{dim, dim}, data: eye()},
		KeyProjector0Bias:   {shape: []int{dim}, data: zeros()},
		KeyProjector2Weight: {shape: []int{dim, dim}, data: eye()},
		KeyProjector2Bias:   {shape: []int{dim}, data: zeros()},
	}
}

// testModel baut ein VisionModel aus Fakes.
// seq ist die Tower-Sequenzlaenge inklusive CLS-Token.
func testModel(t *testing.T, ft *fakeTower, store embedcache.Store, cfg *ModelConfig, tileCols, tileRows int) *VisionModel {
	t.Helper()

	proj, err := newProjector(identityWeights(ft.hidden))
	if err != nil {
		t.Fatalf("Projector-Bau fehlgeschlagen: %v", err)
	}

	return &VisionModel{
		cfg:       cfg,
		tower:     ft,
		projector: proj,
		processor: &vision.ImageProcessor{
			CropSize:     8,
			ResizeSize:   8,
			DoCenterCrop: true,
			Normalize:    vision.CLIPNormalize,
			TileCols:     tileCols,
			TileRows:     tileRows,
		},
		store:  store,
		device: backend.DeviceCPU,
		logger: slog.Default(),
	}
}

// pngBytes erzeugt ein einfarbiges PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 120, B: 150, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNG-Encoding fehlgeschlagen: %v", err)
	}
	return buf.Bytes()
}

// pixelBatch erzeugt einen Dummy-Pixel-Tensor (batch, 3, 8, 8).
func pixelBatch(batch int) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(batch, 3, 8, 8),
		tensor.WithBacking(make([]float32, batch*3*8*8)),
	)
}
