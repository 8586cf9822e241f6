// Package encoding serializes factor graphs and solution points to
// CBOR. Streams begin with a version header; reading a stream written
// by a different library version logs a warning but proceeds.
package encoding

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blang/semver/v4"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam"
	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/linear"
	"github.com/jlblancoc/gtsam/logger"
	"github.com/jlblancoc/gtsam/noise"
)

// ErrUnsupportedFactor is returned when a graph holds a factor type the
// wire format cannot represent.
var ErrUnsupportedFactor = errors.New("encoding: unsupported factor type")

const (
	factorJacobian uint8 = iota + 1
	factorHessian
)

const (
	noiseUnit uint8 = iota + 1
	noiseIsotropic
	noiseDiagonal
)

type header struct {
	Version string `cbor:"version"`
}

type noiseWire struct {
	Kind   uint8     `cbor:"kind"`
	Dim    int       `cbor:"dim,omitempty"`
	Sigma  float64   `cbor:"sigma,omitempty"`
	Sigmas []float64 `cbor:"sigmas,omitempty"`
}

type factorWire struct {
	Kind  uint8      `cbor:"kind"`
	Keys  []uint64   `cbor:"keys"`
	Dims  []int      `cbor:"dims"`
	Rows  int        `cbor:"rows,omitempty"`
	Data  []float64  `cbor:"data"`
	Noise *noiseWire `cbor:"noise,omitempty"`
}

type graphWire struct {
	Factors []factorWire `cbor:"factors"`
}

type valuesWire struct {
	Keys []uint64    `cbor:"keys"`
	Vecs [][]float64 `cbor:"vecs"`
}

// Serialize writes g to w as a version header followed by the graph
// body.
func Serialize(w io.Writer, g *linear.FactorGraph) error {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	enc := em.NewEncoder(w)
	if err := enc.Encode(header{Version: gtsam.Version.String()}); err != nil {
		return fmt.Errorf("encoding: writing header: %w", err)
	}

	wires := make([]factorWire, g.Len())
	var eg errgroup.Group
	for i, f := range g.Factors() {
		eg.Go(func() error {
			fw, err := factorToWire(f)
			if err != nil {
				return err
			}
			wires[i] = fw
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := enc.Encode(graphWire{Factors: wires}); err != nil {
		return fmt.Errorf("encoding: writing graph: %w", err)
	}
	return nil
}

// Deserialize reads a factor graph written by Serialize. Every factor
// is revalidated on the way in.
func Deserialize(r io.Reader) (*linear.FactorGraph, error) {
	dec, err := decoder(r)
	if err != nil {
		return nil, err
	}
	if err := readHeader(dec); err != nil {
		return nil, err
	}
	var wire graphWire
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("encoding: reading graph: %w", err)
	}

	g := linear.NewFactorGraph()
	for i, fw := range wire.Factors {
		f, err := wireToFactor(fw)
		if err != nil {
			return nil, fmt.Errorf("encoding: factor %d: %w", i, err)
		}
		g.Add(f)
	}
	return g, nil
}

// SerializeValues writes a solution point to w.
func SerializeValues(w io.Writer, v linear.VectorValues) error {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	enc := em.NewEncoder(w)
	if err := enc.Encode(header{Version: gtsam.Version.String()}); err != nil {
		return fmt.Errorf("encoding: writing header: %w", err)
	}

	ks := v.Keys()
	wire := valuesWire{
		Keys: make([]uint64, len(ks)),
		Vecs: make([][]float64, len(ks)),
	}
	for i, k := range ks {
		val, err := v.At(k)
		if err != nil {
			return err
		}
		wire.Keys[i] = uint64(k)
		wire.Vecs[i] = append([]float64(nil), val.RawVector().Data...)
	}
	if err := enc.Encode(wire); err != nil {
		return fmt.Errorf("encoding: writing values: %w", err)
	}
	return nil
}

// DeserializeValues reads a solution point written by SerializeValues.
func DeserializeValues(r io.Reader) (linear.VectorValues, error) {
	dec, err := decoder(r)
	if err != nil {
		return nil, err
	}
	if err := readHeader(dec); err != nil {
		return nil, err
	}
	var wire valuesWire
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("encoding: reading values: %w", err)
	}
	if len(wire.Keys) != len(wire.Vecs) {
		return nil, fmt.Errorf("encoding: %d keys with %d vectors: %w",
			len(wire.Keys), len(wire.Vecs), linear.ErrInvalidArgument)
	}

	v := linear.NewVectorValues()
	for i, k := range wire.Keys {
		if len(wire.Vecs[i]) == 0 {
			return nil, fmt.Errorf("encoding: empty vector for %s: %w", keys.Key(k), linear.ErrInvalidDimensions)
		}
		if err := v.Insert(keys.Key(k), mat.NewVecDense(len(wire.Vecs[i]), wire.Vecs[i])); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Write serializes g into a file.
func Write(path string, g *linear.FactorGraph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Serialize(f, g)
}

// Read deserializes a factor graph from a file.
func Read(path string) (*linear.FactorGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Deserialize(f)
}

// WriteValues serializes v into a file.
func WriteValues(path string, v linear.VectorValues) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return SerializeValues(f, v)
}

// ReadValues deserializes a solution from a file.
func ReadValues(path string) (linear.VectorValues, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DeserializeValues(f)
}

func decoder(r io.Reader) (*cbor.Decoder, error) {
	dm, err := cbor.DecOptions{
		MaxArrayElements: 134217728,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return dm.NewDecoder(r), nil
}

func readHeader(dec *cbor.Decoder) error {
	var h header
	if err := dec.Decode(&h); err != nil {
		return fmt.Errorf("encoding: reading header: %w", err)
	}
	v, err := semver.Parse(h.Version)
	if err != nil {
		return fmt.Errorf("encoding: version %q: %w", h.Version, err)
	}
	if v.NE(gtsam.Version) {
		log := logger.Logger()
		log.Warn().
			Str("stream", h.Version).
			Str("library", gtsam.Version.String()).
			Msg("stream was written by a different version")
	}
	return nil
}

func factorToWire(f linear.GaussianFactor) (factorWire, error) {
	switch ft := f.(type) {
	case *linear.JacobianFactor:
		return jacobianToWire(ft)
	case *linear.HessianFactor:
		return hessianToWire(ft)
	default:
		return factorWire{}, fmt.Errorf("%w: %T", ErrUnsupportedFactor, f)
	}
}

func jacobianToWire(f *linear.JacobianFactor) (factorWire, error) {
	fk := f.Keys()
	wire := factorWire{
		Kind: factorJacobian,
		Keys: make([]uint64, len(fk)),
		Dims: make([]int, len(fk)),
		Rows: f.Rows(),
	}
	for i, k := range fk {
		d, err := f.Dim(k)
		if err != nil {
			return factorWire{}, err
		}
		wire.Keys[i] = uint64(k)
		wire.Dims[i] = d
	}
	aug := f.AugmentedMatrix()
	if f.Rows() > 0 {
		wire.Data = append([]float64(nil), aug.RawMatrix().Data...)
	}
	wire.Noise = noiseToWire(f.Model())
	return wire, nil
}

func hessianToWire(f *linear.HessianFactor) (factorWire, error) {
	fk := f.Keys()
	wire := factorWire{
		Kind: factorHessian,
		Keys: make([]uint64, len(fk)),
		Dims: make([]int, len(fk)),
	}
	for i, k := range fk {
		d, err := f.Dim(k)
		if err != nil {
			return factorWire{}, err
		}
		wire.Keys[i] = uint64(k)
		wire.Dims[i] = d
	}
	aug := f.AugmentedInformation()
	n := aug.SymmetricDim()
	wire.Data = make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			wire.Data[i*n+j] = aug.At(i, j)
		}
	}
	return wire, nil
}

func noiseToWire(m noise.Model) *noiseWire {
	switch nm := m.(type) {
	case nil:
		return nil
	case *noise.Unit:
		return &noiseWire{Kind: noiseUnit, Dim: nm.Dim()}
	case *noise.Isotropic:
		return &noiseWire{Kind: noiseIsotropic, Dim: nm.Dim(), Sigma: nm.Sigmas()[0]}
	default:
		// Any other model in the diagonal family round-trips through its
		// sigmas.
		return &noiseWire{Kind: noiseDiagonal, Sigmas: nm.Sigmas()}
	}
}

func wireToNoise(w *noiseWire) (noise.Model, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case noiseUnit:
		return noise.NewUnit(w.Dim)
	case noiseIsotropic:
		return noise.NewIsotropic(w.Dim, w.Sigma)
	case noiseDiagonal:
		return noise.NewDiagonal(w.Sigmas)
	default:
		return nil, fmt.Errorf("encoding: unknown noise kind %d: %w", w.Kind, linear.ErrInvalidArgument)
	}
}

func wireToFactor(w factorWire) (linear.GaussianFactor, error) {
	ks := make([]keys.Key, len(w.Keys))
	for i, k := range w.Keys {
		ks[i] = keys.Key(k)
	}
	switch w.Kind {
	case factorJacobian:
		widths := append(append([]int(nil), w.Dims...), 1)
		cols := 0
		for _, d := range widths {
			cols += d
		}
		if len(w.Data) != w.Rows*cols {
			return nil, fmt.Errorf("encoding: %d data values for a %dx%d system: %w",
				len(w.Data), w.Rows, cols, linear.ErrInvalidDimensions)
		}
		bm, err := linear.NewBlockMatrix(widths, w.Rows)
		if err != nil {
			return nil, err
		}
		if w.Rows > 0 {
			copy(bm.Full().RawMatrix().Data, w.Data)
		}
		model, err := wireToNoise(w.Noise)
		if err != nil {
			return nil, err
		}
		return linear.NewJacobianFactorFromBlocks(ks, bm, model)

	case factorHessian:
		n := 0
		for _, d := range w.Dims {
			n += d
		}
		if len(w.Data) != (n+1)*(n+1) {
			return nil, fmt.Errorf("encoding: %d data values for an augmented size of %d: %w",
				len(w.Data), n+1, linear.ErrInvalidDimensions)
		}
		aug := mat.NewSymDense(n+1, w.Data)
		return linear.NewHessianFactor(ks, w.Dims, aug)

	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedFactor, w.Kind)
	}
}
