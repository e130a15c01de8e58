package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"tilemap/pkg/geom"
	"tilemap/pkg/grid"
	"tilemap/pkg/maps"
)

const usage = `usage: maptool [-grid preset] <command> [arguments]

commands:
  create    -out PATH [-tileset ID] [-width N] [-height N] [-title T]
  generate  -out PATH [-tileset ID] [-width N] [-height N] [-plateaus N] [-lakes N] [-resources N] [-seed N]
  info      PATH
  uid       PATH
  convert   SRC DST
  resize    PATH WIDTH HEIGHT
  preview   PATH OUT.png
  project   PATH X,Y
  unproject PATH U,V
  debug     PATH
  tilesets
`

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("maptool: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("maptool", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usage) }
	gridName := global.String("grid", "isometric", "Grid preset name or grid JSON file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("missing command")
	}

	name := *gridName
	if envGrid := os.Getenv("TILEMAP_GRID"); envGrid != "" {
		name = envGrid
	}
	g, err := grid.Resolve(name)
	if err != nil {
		return err
	}
	t := &tool{loader: maps.NewLoader(g), out: out}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "create":
		return t.create(rest)
	case "generate":
		return t.generate(rest)
	case "info":
		return t.withMap(rest, 1, func(m *maps.Map, _ []string) error { return t.info(m) })
	case "uid":
		return t.uid(rest)
	case "convert":
		return t.withMap(rest, 2, func(m *maps.Map, args []string) error { return t.save(m, args[1]) })
	case "resize":
		return t.withMap(rest, 3, t.resize)
	case "preview":
		return t.withMap(rest, 2, t.preview)
	case "project":
		return t.withMap(rest, 2, t.project)
	case "unproject":
		return t.withMap(rest, 2, t.unproject)
	case "debug":
		return t.withMap(rest, 1, func(m *maps.Map, _ []string) error {
			fmt.Fprintln(t.out, m.Debug())
			fmt.Fprintln(t.out, m.DebugProjection())
			return nil
		})
	case "tilesets":
		ids, err := t.loader.Tilesets.IDs()
		if err != nil {
			return err
		}
		sort.Strings(ids)
		fmt.Fprintln(t.out, strings.Join(ids, "\n"))
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type tool struct {
	loader *maps.Loader
	out    io.Writer
}

// withMap loads the package named by args[0] and runs fn with the remaining
// arguments, which must number exactly n-1.
func (t *tool) withMap(args []string, n int, fn func(*maps.Map, []string) error) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	m, err := t.load(args[0])
	if err != nil {
		return err
	}
	return fn(m, args)
}

func (t *tool) load(path string) (*maps.Map, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	pkg, err := maps.OpenPackage(path)
	if err != nil {
		return nil, err
	}
	m, err := t.loader.Load(pkg)
	if err != nil {
		return nil, err
	}
	if n := len(m.ReplacedInvalidTerrainTiles); n > 0 {
		log.Printf("Replaced %d invalid terrain tiles", n)
	}
	return m, nil
}

func (t *tool) save(m *maps.Map, path string) error {
	pkg, err := maps.OpenPackage(path)
	if err != nil {
		return err
	}
	if err := m.Save(pkg); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%s %s\n", m.UID, path)
	return nil
}

func (t *tool) create(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(t.out)
	out := fs.String("out", "", "Output folder or .oramap file")
	tileset := fs.String("tileset", maps.DefaultOptions().Tileset, "Tileset id")
	width := fs.Int("width", 64, "Map width")
	height := fs.Int("height", 64, "Map height")
	title := fs.String("title", "", "Map title")
	author := fs.String("author", "", "Map author")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("create: -out is required")
	}

	m, err := t.loader.Create(*tileset, *width, *height)
	if err != nil {
		return err
	}
	if *title != "" {
		m.Title = *title
	}
	if *author != "" {
		m.Author = *author
	}
	return t.save(m, *out)
}

func (t *tool) generate(args []string) error {
	opts := maps.DefaultOptions()
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(t.out)
	out := fs.String("out", "", "Output folder or .oramap file")
	fs.StringVar(&opts.Tileset, "tileset", opts.Tileset, "Tileset id")
	fs.IntVar(&opts.Width, "width", opts.Width, "Map width (16-128)")
	fs.IntVar(&opts.Height, "height", opts.Height, "Map height (16-128, 0 for 3/4 of the width)")
	fs.IntVar(&opts.Plateaus, "plateaus", opts.Plateaus, "Raised areas (0-16)")
	fs.IntVar(&opts.Lakes, "lakes", opts.Lakes, "Water bodies (0-8)")
	fs.IntVar(&opts.Resources, "resources", opts.Resources, "Resource coverage percentage (0-50)")
	fs.Int64Var(&opts.Seed, "seed", opts.Seed, "Random seed, 0 for a clock seed")
	title := fs.String("title", "", "Map title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("generate: -out is required")
	}

	m, steps, err := maps.NewGenerator(t.loader, opts).Generate()
	if err != nil {
		return err
	}
	if *title != "" {
		m.Title = *title
	}
	log.Printf("Generated %dx%d map in %d steps", m.MapSize.Width, m.MapSize.Height, len(steps))
	return t.save(m, *out)
}

func (t *tool) info(m *maps.Map) error {
	w := t.out
	fmt.Fprintf(w, "Title:      %s\n", m.Title)
	fmt.Fprintf(w, "Author:     %s\n", m.Author)
	fmt.Fprintf(w, "Tileset:    %s\n", m.TilesetID)
	fmt.Fprintf(w, "Format:     %d\n", m.MapFormat)
	fmt.Fprintf(w, "Grid:       %s (max height %d)\n", m.Grid.Type, m.Grid.MaximumTerrainHeight)
	fmt.Fprintf(w, "Size:       %dx%d\n", m.MapSize.Width, m.MapSize.Height)
	fmt.Fprintf(w, "Bounds:     %d,%d %dx%d\n", m.Bounds.X, m.Bounds.Y, m.Bounds.Width, m.Bounds.Height)
	fmt.Fprintf(w, "Edge cells: %d\n", len(m.AllEdgeCells))
	if len(m.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(m.Categories, ", "))
	}
	fmt.Fprintf(w, "UID:        %s\n", m.UID)
	return nil
}

func (t *tool) uid(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	pkg, err := maps.OpenPackage(args[0])
	if err != nil {
		return err
	}
	uid, err := maps.ComputeUID(pkg)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, uid)
	return nil
}

func (t *tool) resize(m *maps.Map, args []string) error {
	width, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid width %q", args[1])
	}
	height, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid height %q", args[2])
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid map size: %dx%d", width, height)
	}
	m.Resize(width, height)
	return t.save(m, args[0])
}

func (t *tool) preview(m *maps.Map, args []string) error {
	data, err := m.SavePreview()
	if err != nil {
		return err
	}
	return os.WriteFile(args[1], data, 0o644)
}

func (t *tool) project(m *maps.Map, args []string) error {
	x, y, err := parsePair(args[1])
	if err != nil {
		return err
	}
	c := geom.CPos{X: x, Y: y}
	uv := c.ToMPos(m.Grid.Type)
	fmt.Fprintf(t.out, "cell %d,%d map %d,%d contains %v\n", c.X, c.Y, uv.U, uv.V, m.Contains(c))
	for _, p := range m.ProjectedCellsCovering(uv) {
		fmt.Fprintf(t.out, "projected %d,%d height %d\n", p.U, p.V, m.ProjectedHeight(p))
	}
	return nil
}

func (t *tool) unproject(m *maps.Map, args []string) error {
	u, v, err := parsePair(args[1])
	if err != nil {
		return err
	}
	p := geom.PPos{U: u, V: v}
	fmt.Fprintf(t.out, "projected %d,%d height %d\n", p.U, p.V, m.ProjectedHeight(p))
	for _, uv := range m.Unproject(p) {
		c := uv.ToCPos(m.Grid.Type)
		fmt.Fprintf(t.out, "map %d,%d cell %d,%d\n", uv.U, uv.V, c.X, c.Y)
	}
	return nil
}

func parsePair(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid coordinate %q, want X,Y", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(a))
	y, errY := strconv.Atoi(strings.TrimSpace(b))
	if errX != nil || errY != nil {
		return 0, 0, fmt.Errorf("invalid coordinate %q, want X,Y", s)
	}
	return x, y, nil
}
