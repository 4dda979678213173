package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/shaderchunk"
)

type shadowFlags struct {
	light  string
	face   int
	vsm    bool
	output string
	size   int
}

func newShadowCmd(opts *options) *cobra.Command {
	f := &shadowFlags{}
	cmd := &cobra.Command{
		Use:   "shadow",
		Short: "Render one shadow map face and save it as PNG",
		Long: `Render a ground plane and a floating triangle into one face of a
light's shadow map, run the VSM filter when enabled, and write the depth
(or first moment) as a grayscale PNG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShadow(cmd, opts, f)
		},
	}
	cmd.Flags().StringVar(&f.light, "light", "spot", "light type: directional, spot or point")
	cmd.Flags().IntVar(&f.face, "face", 0, "shadow face (0..5 for point lights)")
	cmd.Flags().BoolVar(&f.vsm, "vsm", false, "store and filter variance shadow moments")
	cmd.Flags().StringVarP(&f.output, "output", "o", "shadow.png", "output PNG file")
	cmd.Flags().IntVar(&f.size, "size", 512, "output image edge length")
	return cmd
}

func parseLightType(s string) (render.LightType, error) {
	switch s {
	case "directional":
		return render.LightDirectional, nil
	case "spot":
		return render.LightSpot, nil
	case "point":
		return render.LightPoint, nil
	default:
		return 0, fmt.Errorf("unknown light type %q", s)
	}
}

func runShadow(cmd *cobra.Command, opts *options, f *shadowFlags) error {
	cfg := opts.cfg
	lt, err := parseLightType(f.light)
	if err != nil {
		return err
	}
	if f.size < 1 {
		return fmt.Errorf("--size %d must be positive", f.size)
	}

	dev, err := gpu.OpenDevice(cfg.Device.Backend, cfg.DeviceOptions())
	if err != nil {
		return err
	}
	defer dev.Close()

	chunks, err := loadChunks(opts)
	if err != nil {
		return err
	}
	ring, err := dev.NewUniformRing("gfxdemo uniforms", cfg.Memory.UniformChunkSize)
	if err != nil {
		return err
	}
	defer ring.Destroy()

	light := &render.Light{
		Name:       "demo",
		Type:       lt,
		Position:   mgl32.Vec3{0, 8, 0},
		Direction:  mgl32.Vec3{0, -1, 0},
		OuterAngle: mgl32.DegToRad(45),
		VSM:        f.vsm,
	}
	cfg.ApplyShadow(light)

	casters, err := demoScene(dev)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range casters {
			c.Vertices.Destroy()
			if c.Indices != nil {
				c.Indices.Destroy()
			}
		}
	}()

	pass, err := render.NewShadowPass(dev, render.ShadowPassOptions{
		Light:   light,
		Face:    f.face,
		Casters: casters,
		Ring:    ring,
		Chunks:  chunks,
	})
	if err != nil {
		return err
	}
	frame := render.NewFrame(dev, pass)
	defer frame.Destroy()

	stats, err := frame.Run()
	if err != nil {
		return err
	}
	if len(stats.Degraded) > 0 {
		return fmt.Errorf("shadow pass failed: %v", stats.Degraded)
	}

	img, err := shadowImage(pass)
	if err != nil {
		return err
	}
	if err := writeScaled(f.output, img, f.size); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s light face %d, %d casters drawn, filter runs %d, %s\n",
		f.output, lt, f.face, pass.Drawn(), pass.FilterRuns(), dev.VRAM())
	return nil
}

// loadChunks returns the built-in chunks overlaid with the configured
// chunk directory.
func loadChunks(opts *options) (*shaderchunk.Registry, error) {
	r := shaderchunk.NewRegistry()
	render.RegisterChunks(r)
	if dir := opts.cfg.Shaders.Dir; dir != "" {
		if _, err := shaderchunk.LoadDir(r, dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// demoScene uploads a ground quad and a triangle above it.
func demoScene(dev *gpu.Device) ([]render.Caster, error) {
	ground, err := uploadMesh(dev, "ground",
		[]float32{-10, 0, -10, 10, 0, -10, 10, 0, 10, -10, 0, 10},
		[]uint32{0, 1, 2, 0, 2, 3})
	if err != nil {
		return nil, err
	}
	tri, err := uploadMesh(dev, "triangle",
		[]float32{-1, 0, 0, 1, 0, 0, 0, 0, 2},
		nil)
	if err != nil {
		ground.Vertices.Destroy()
		ground.Indices.Destroy()
		return nil, err
	}
	tri.Model = mgl32.Translate3D(0, 3, 0)
	return []render.Caster{ground, tri}, nil
}

func uploadMesh(dev *gpu.Device, label string, positions []float32, indices []uint32) (render.Caster, error) {
	vb, err := dev.CreateVertexBuffer(label, gpucore.PositionLayout(), uint32(len(positions)/3), gpucore.BufferUsageCopyDst)
	if err != nil {
		return render.Caster{}, err
	}
	view, err := vb.Lock()
	if err == nil {
		err = view.PutFloat32s(0, positions...)
	}
	if err == nil {
		err = vb.Unlock()
	}
	if err != nil {
		vb.Destroy()
		return render.Caster{}, err
	}
	c := render.Caster{Vertices: vb, Model: mgl32.Ident4()}
	if len(indices) == 0 {
		return c, nil
	}
	ib, err := dev.CreateIndexBuffer(label+" indices", gpucore.IndexFormatUint16, uint32(len(indices)), gpucore.BufferUsageCopyDst)
	if err == nil {
		err = ib.WriteIndices(0, indices)
	}
	if err != nil {
		vb.Destroy()
		if ib != nil {
			ib.Destroy()
		}
		return render.Caster{}, err
	}
	c.Indices = ib
	return c, nil
}

// shadowImage reads the shadow face back as gray levels: the first moment
// for VSM, depth otherwise.
func shadowImage(pass *render.ShadowPass) (*image.Gray, error) {
	target := pass.Target()
	tex, stride := target.DepthTexture(), 4
	if pass.VSM() {
		tex, stride = target.ColorTexture(), 8
	}
	texels, err := tex.Read()
	if err != nil {
		return nil, fmt.Errorf("read shadow map: %w", err)
	}
	w, h := int(tex.Width()), int(tex.Height())
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range w * h {
		v := math.Float32frombits(binary.LittleEndian.Uint32(texels[i*stride:]))
		img.Pix[i] = uint8(255 * min(max(v, 0), 1))
	}
	return img, nil
}

// writeScaled resamples img to size x size and writes it as PNG.
func writeScaled(path string, img image.Image, size int) error {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, dst); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
