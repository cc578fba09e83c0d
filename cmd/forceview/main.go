package main

import (
	"fmt"
	"image/color"
	"os"

	"github.com/forceviz/forceviz/internal/config"
	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/forceviz/forceviz/internal/render"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/spf13/cobra"
)

const (
	screenWidth  = 1024
	screenHeight = 768
	nudgeStep    = 0.5
	orbitStep    = 0.02
	hueStep      = 0.05
)

var (
	background = color.NRGBA{R: 18, G: 20, B: 26, A: 255}
	axisColor  = color.NRGBA{R: 70, G: 74, B: 86, A: 255}
	markColor  = color.NRGBA{R: 230, G: 230, B: 230, A: 255}
)

// Viewer draws a sensor field and edits it from the keyboard. ebiten calls
// Update and Draw on one goroutine, so the field needs no loop of its own.
type Viewer struct {
	field  *sensorfield.Field
	camera render.Camera
	yaw    float64
	hue    colorgrad.Session
	logger log.Log
}

func NewViewer(field *sensorfield.Field, logger log.Log) *Viewer {
	return &Viewer{
		field:  field,
		camera: render.DefaultCamera(screenWidth, screenHeight),
		logger: logger,
	}
}

func (v *Viewer) Update() error {
	if v.hue.IsOpen() {
		v.updateHue()
		v.field.Tick()
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyA):
		i := v.field.AddSensor()
		_ = v.field.Select(i)
	case inpututil.IsKeyJustPressed(ebiten.KeyDelete), inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		_ = v.field.RemoveSelected()
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		v.cycleSelection()
	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		v.hue.Open(v.field.Ramp().High, v.field.SetHighForceColor)
	}

	var nudge mgl64.Vec3
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		nudge[0] += nudgeStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		nudge[0] -= nudgeStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		nudge[1] += nudgeStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		nudge[1] -= nudgeStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageUp) {
		nudge[2] += nudgeStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageDown) {
		nudge[2] -= nudgeStep
	}
	if nudge != (mgl64.Vec3{}) {
		v.nudgeSelected(nudge)
	}

	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		v.yaw -= orbitStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		v.yaw += orbitStep
	}

	v.field.Tick()
	return nil
}

// updateHue edits the high ramp color while a hue selection is open. The
// field shows each preview; Escape puts the opening color back.
func (v *Viewer) updateHue() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		v.hue.Confirm()
		return
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		v.hue.Cancel()
		return
	}
	var step float64
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		step += hueStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		step -= hueStep
	}
	if step == 0 {
		return
	}
	hsv := colorgrad.RGBToHSV(v.hue.Current())
	c := colorgrad.HSVToRGB(hsv.H+step, hsv.S, hsv.V)
	v.hue.Preview(c)
	v.field.SetHighForceColor(c)
}

func (v *Viewer) cycleSelection() {
	n := v.field.Len()
	if n == 0 {
		return
	}
	_ = v.field.Select((v.field.Selected() + 1) % n)
}

func (v *Viewer) nudgeSelected(d mgl64.Vec3) {
	i := v.field.Selected()
	s, ok := v.field.Sensor(i)
	if !ok {
		return
	}
	force := s.Force.Add(d)
	if err := v.field.UpdateSensor(i, nil, &force); err != nil {
		v.logger.Warn("nudge failed", log.Error(err))
	}
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	cam := v.camera.Orbit(v.yaw)

	axes := []*sensorfield.Arrow{
		axisArrow(mgl64.Vec3{5, 0, 0}),
		axisArrow(mgl64.Vec3{0, 5, 0}),
		axisArrow(mgl64.Vec3{0, 0, 5}),
	}
	for _, s := range render.Project(axes, cam) {
		vector.StrokeLine(screen, f32(s.Base.X()), f32(s.Base.Y()), f32(s.Tip.X()), f32(s.Tip.Y()), 1, axisColor, true)
	}

	selected := v.field.Selected()
	for _, s := range render.Project(v.field.Arrows(), cam) {
		width := float32(2)
		if s.Index == selected {
			width = 4
		}
		vector.StrokeLine(screen, f32(s.Base.X()), f32(s.Base.Y()), f32(s.Tip.X()), f32(s.Tip.Y()), width, s.Color, true)
		vector.StrokeLine(screen, f32(s.Tip.X()), f32(s.Tip.Y()), f32(s.Left.X()), f32(s.Left.Y()), width, s.Color, true)
		vector.StrokeLine(screen, f32(s.Tip.X()), f32(s.Tip.Y()), f32(s.Right.X()), f32(s.Right.Y()), width, s.Color, true)
		vector.DrawFilledCircle(screen, f32(s.Base.X()), f32(s.Base.Y()), 3, markColor, true)
	}

	help := "A add  Del remove  Tab select  arrows/PgUp/PgDn nudge force  Q/E orbit  H pick high hue"
	if v.hue.IsOpen() {
		help = "Left/Right shift high hue  Enter keep  Esc revert"
	}
	ramp := v.field.Ramp()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"%s\n"+
			"ramp %s -> %s  threshold %.3g  alpha %.2f  selected %d\n\n%s",
		help, colorgrad.RGBToHex(ramp.Low), colorgrad.RGBToHex(ramp.High), ramp.Threshold, ramp.Alpha,
		selected, v.field.Listing()))
}

func (v *Viewer) Layout(_, _ int) (int, int) {
	return screenWidth, screenHeight
}

func axisArrow(dir mgl64.Vec3) *sensorfield.Arrow {
	tr, _ := physics.ArrowTransform(physics.Zero, dir)
	return &sensorfield.Arrow{Transform: tr}
}

func f32(f float64) float32 {
	return float32(f)
}

var configPath string

var rootCmd = &cobra.Command{
	Use:          "forceview",
	Short:        "Desktop viewer for a local sensor field",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts, err := cfg.FieldOptions()
	if err != nil {
		return err
	}
	field := sensorfield.New(append(opts, sensorfield.WithLogger(logger))...)

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("forceview")
	ebiten.SetTPS(cfg.Field.TickRate)

	if err := ebiten.RunGame(NewViewer(field, logger)); err != nil {
		logger.Error("viewer stopped", log.Error(err))
		return err
	}
	return nil
}
