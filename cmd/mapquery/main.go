package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tilemap/internal/client"
	"tilemap/internal/protocol"
	"tilemap/pkg/geom"
	"tilemap/pkg/maps"
)

const usage = `usage: mapquery [-server ADDR] [-profile P] [-name AUTHOR] [-map NAME|UID] <command> [arguments]

commands:
  list
  info
  create NAME WIDTH HEIGHT [TILESET]
  generate NAME [SEED]
  contains X,Y
  clamp X,Y
  project X,Y
  unproject U,V
  terrain X,Y
  tiles X,Y MIN MAX
  edges [X,Y]
  set-height X,Y H
  set-tile X,Y TYPE INDEX
  save
  download UID DIR
`

func main() {
	log.SetFlags(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("mapquery: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mapquery", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	serverAddr := fs.String("server", "", "Map server address (default: last used server)")
	profile := fs.String("profile", "", "Profile name for separate config")
	name := fs.String("name", "", "Author name used when registering")
	open := fs.String("map", "", "Stored map to open before the command (name or UID)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}

	client.SetProfile(*profile)
	config, err := client.LoadConfig()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
	}
	addr := *serverAddr
	if addr == "" {
		addr = config.LastServer
	}

	c := client.New(config)
	if err := c.Connect(ctx, addr); err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Authenticate(ctx, *name); err != nil {
		return err
	}
	defer func() {
		if err := config.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
	}()

	if *open != "" {
		if _, err := c.OpenMap(ctx, protocol.OpenMapPayload{Name: *open}); err != nil {
			if _, err := c.OpenMap(ctx, protocol.OpenMapPayload{UID: *open}); err != nil {
				return err
			}
		}
	}

	q := &query{c: c, out: out}
	return q.run(ctx, fs.Arg(0), fs.Args()[1:])
}

type query struct {
	c   *client.Client
	out io.Writer
}

func (q *query) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		list, err := q.c.ListMaps(ctx)
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Fprintf(q.out, "%s  %-20s %3dx%-3d %-10s %s\n", m.UID, m.Name, m.Width, m.Height, m.Tileset, m.Title)
		}
		return nil

	case "info":
		info, err := q.c.MapInfo(ctx)
		if err != nil {
			return err
		}
		q.printInfo(info)
		return nil

	case "create":
		if len(args) < 3 {
			return fmt.Errorf("create: expected NAME WIDTH HEIGHT [TILESET]")
		}
		width, errW := strconv.Atoi(args[1])
		height, errH := strconv.Atoi(args[2])
		if errW != nil || errH != nil {
			return fmt.Errorf("create: invalid size %sx%s", args[1], args[2])
		}
		req := protocol.CreateMapPayload{Name: args[0], Width: width, Height: height}
		if len(args) > 3 {
			req.Tileset = args[3]
		}
		info, err := q.c.CreateMap(ctx, req)
		if err != nil {
			return err
		}
		q.printInfo(info)
		return nil

	case "generate":
		if len(args) < 1 {
			return fmt.Errorf("generate: expected NAME [SEED]")
		}
		opts := maps.DefaultOptions()
		req := protocol.GenerateMapPayload{
			Name:      args[0],
			Plateaus:  opts.Plateaus,
			Lakes:     opts.Lakes,
			Resources: opts.Resources,
		}
		if len(args) > 1 {
			seed, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("generate: invalid seed %q", args[1])
			}
			req.Seed = seed
		}
		info, err := q.c.GenerateMap(ctx, req)
		if err != nil {
			return err
		}
		q.printInfo(info)
		return nil

	case "contains":
		return q.withCell(args, 1, func(c geom.CPos) error {
			ok, err := q.c.Contains(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(q.out, ok)
			return nil
		})

	case "clamp":
		return q.withCell(args, 1, func(c geom.CPos) error {
			clamped, err := q.c.Clamp(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(q.out, "%d,%d\n", clamped.X, clamped.Y)
			return nil
		})

	case "project":
		return q.withCell(args, 1, func(c geom.CPos) error {
			projected, err := q.c.Project(ctx, c)
			if err != nil {
				return err
			}
			for _, p := range projected {
				fmt.Fprintf(q.out, "%d,%d\n", p.U, p.V)
			}
			return nil
		})

	case "unproject":
		if len(args) != 1 {
			return fmt.Errorf("unproject: expected U,V")
		}
		u, v, err := parsePair(args[0])
		if err != nil {
			return err
		}
		cells, height, err := q.c.Unproject(ctx, geom.PPos{U: u, V: v})
		if err != nil {
			return err
		}
		fmt.Fprintf(q.out, "height %d\n", height)
		for _, uv := range cells {
			fmt.Fprintf(q.out, "%d,%d\n", uv.U, uv.V)
		}
		return nil

	case "terrain":
		return q.withCell(args, 1, func(c geom.CPos) error {
			t, err := q.c.TerrainAt(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(q.out, "%s tile %d:%d height %d ramp %d resource %d/%d water %v contains %v\n",
				t.Terrain, t.TileType, t.TileIndex, t.Height, t.Ramp, t.Resource, t.Density, t.IsWater, t.Contains)
			return nil
		})

	case "tiles":
		if len(args) != 3 {
			return fmt.Errorf("tiles: expected X,Y MIN MAX")
		}
		minRange, errMin := strconv.Atoi(args[1])
		maxRange, errMax := strconv.Atoi(args[2])
		if errMin != nil || errMax != nil {
			return fmt.Errorf("tiles: invalid range %s-%s", args[1], args[2])
		}
		return q.withCell(args[:1], 1, func(c geom.CPos) error {
			cells, err := q.c.FindTiles(ctx, c, minRange, maxRange, false)
			if err != nil {
				return err
			}
			q.printCells(cells)
			return nil
		})

	case "edges":
		if len(args) == 0 {
			cells, err := q.c.EdgeCells(ctx)
			if err != nil {
				return err
			}
			q.printCells(cells)
			return nil
		}
		return q.withCell(args, 1, func(c geom.CPos) error {
			closest, err := q.c.ClosestEdgeCell(ctx, c)
			if err != nil {
				return err
			}
			q.printCells([]geom.CPos{closest})
			return nil
		})

	case "set-height":
		if len(args) != 2 {
			return fmt.Errorf("set-height: expected X,Y H")
		}
		h, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("set-height: invalid height %q", args[1])
		}
		return q.withCell(args[:1], 1, func(c geom.CPos) error {
			changed, err := q.c.SetHeight(ctx, c, h)
			if err != nil {
				return err
			}
			q.printCells(changed)
			return nil
		})

	case "set-tile":
		if len(args) != 3 {
			return fmt.Errorf("set-tile: expected X,Y TYPE INDEX")
		}
		typ, errT := strconv.Atoi(args[1])
		index, errI := strconv.Atoi(args[2])
		if errT != nil || errI != nil {
			return fmt.Errorf("set-tile: invalid tile %s:%s", args[1], args[2])
		}
		return q.withCell(args[:1], 1, func(c geom.CPos) error {
			changed, err := q.c.SetTile(ctx, c, maps.TerrainTile{Type: uint16(typ), Index: byte(index)})
			if err != nil {
				return err
			}
			q.printCells(changed)
			return nil
		})

	case "save":
		uid, err := q.c.SaveMap(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(q.out, uid)
		return nil

	case "download":
		if len(args) != 2 {
			return fmt.Errorf("download: expected UID DIR")
		}
		pkg, err := q.c.DownloadPackage(ctx, args[0])
		if err != nil {
			return err
		}
		names, err := pkg.Contents()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args[1], 0o755); err != nil {
			return err
		}
		for _, name := range names {
			data, err := maps.ReadFile(pkg, name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(args[1], name), data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(q.out, name)
		}
		return nil

	default:
		fmt.Fprint(q.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (q *query) withCell(args []string, n int, fn func(geom.CPos) error) error {
	if len(args) != n {
		return fmt.Errorf("expected X,Y")
	}
	x, y, err := parsePair(args[0])
	if err != nil {
		return err
	}
	return fn(geom.CPos{X: x, Y: y})
}

func (q *query) printInfo(info *protocol.MapInfoPayload) {
	fmt.Fprintf(q.out, "%s %s %q by %s\n", info.UID, info.Name, info.Title, info.Author)
	fmt.Fprintf(q.out, "%s %s %dx%d bounds %d,%d %dx%d max height %d viewers %d dirty %v\n",
		info.Tileset, info.GridType, info.Width, info.Height,
		info.Bounds[0], info.Bounds[1], info.Bounds[2], info.Bounds[3],
		info.MaxHeight, info.Viewers, info.Dirty)
}

func (q *query) printCells(cells []geom.CPos) {
	for _, c := range cells {
		fmt.Fprintf(q.out, "%d,%d\n", c.X, c.Y)
	}
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
