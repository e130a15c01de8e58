package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"tilemap/internal/client"
	"tilemap/internal/mapedit"
	"tilemap/internal/protocol"
	"tilemap/internal/viewer"
	"tilemap/pkg/grid"
	"tilemap/pkg/maps"
)

func main() {
	profile := flag.String("profile", "", "Profile name for separate config (e.g., author1, author2)")
	mapPath := flag.String("map", "", "Map folder or .oramap file to view locally")
	serverAddr := flag.String("server", "", "Map server address (default: last used server)")
	open := flag.String("open", "", "Name or UID of a stored map to open on the server")
	name := flag.String("name", "", "Author name used when registering with the server")
	gridName := flag.String("grid", "isometric", "Grid preset name or grid JSON file for local maps")
	flag.Parse()

	client.SetProfile(*profile)
	config, err := client.LoadConfig()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
	}

	opts := viewer.Options{
		Width:    config.WindowWidth,
		Height:   config.WindowHeight,
		ShowGrid: config.ShowGrid,
	}

	var editor *mapedit.Editor
	if *mapPath != "" {
		editor, err = openLocal(*mapPath, *gridName)
		opts.Title = "Map Viewer - " + *mapPath
	} else {
		var c *client.Client
		c, editor, err = openRemote(config, *serverAddr, *open, *name)
		if c != nil {
			defer c.Close()
		}
		opts.Title = "Map Viewer - " + config.LastMap
	}
	if err != nil {
		log.Fatalf("Failed to open map: %v", err)
	}
	defer editor.Close()

	if err := viewer.New(editor, opts).Run(); err != nil {
		log.Fatal(err)
	}

	if err := config.Save(); err != nil {
		log.Printf("Failed to save config: %v", err)
	}
}

func openLocal(path, gridName string) (*mapedit.Editor, error) {
	if envGrid := os.Getenv("TILEMAP_GRID"); envGrid != "" {
		gridName = envGrid
	}
	g, err := grid.Resolve(gridName)
	if err != nil {
		return nil, err
	}
	pkg, err := maps.OpenPackage(path)
	if err != nil {
		return nil, err
	}
	m, err := maps.NewLoader(g).Load(pkg)
	if err != nil {
		return nil, err
	}
	return mapedit.NewLocal(m, pkg), nil
}

func openRemote(config *client.Config, serverAddr, open, name string) (*client.Client, *mapedit.Editor, error) {
	if serverAddr == "" {
		serverAddr = config.LastServer
	}
	if open == "" {
		open = config.LastMap
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(config)
	if err := c.Connect(ctx, serverAddr); err != nil {
		return nil, nil, err
	}
	if _, err := c.Authenticate(ctx, name); err != nil {
		return c, nil, err
	}
	if err := config.Save(); err != nil {
		log.Printf("Failed to save config: %v", err)
	}

	// The name is tried first, then the UID.
	info, err := c.OpenMap(ctx, protocol.OpenMapPayload{Name: open})
	if err != nil {
		if info, err = c.OpenMap(ctx, protocol.OpenMapPayload{UID: open}); err != nil {
			return c, nil, err
		}
	}

	// Other viewers may have unsaved edits; store them so the download
	// matches the open map.
	uid := info.UID
	if info.Dirty {
		if uid, err = c.SaveMap(ctx); err != nil {
			return c, nil, err
		}
	}

	g, err := grid.Preset(client.GridPreset(info.GridType))
	if err != nil {
		return c, nil, err
	}
	m, err := c.DownloadMap(ctx, maps.NewLoader(g), uid)
	if err != nil {
		return c, nil, err
	}

	editor := mapedit.NewRemote(m, c)
	c.OnCellsChanged = func(p protocol.CellsChangedPayload) {
		editor.CellChanged(p.Edited.CPos())
	}
	return c, editor, nil
}
