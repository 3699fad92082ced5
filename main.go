package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clickart/internal/config"
	"clickart/internal/export"
	"clickart/internal/generate"
	clinet "clickart/internal/net"
	"clickart/internal/raster"
	"clickart/internal/session"
	"clickart/internal/sketch"
	"clickart/internal/store"
	"clickart/internal/upload"
)

// snapshotKey is where the current sketch lives in the local store, so
// a restarted session picks up where the user left off.
const snapshotKey = "paths"

func main() {
	configPath := flag.String("config", "", "config file (default: XDG config dir)")
	exportPath := flag.String("export-pdf", "", "export the stored sketch to a PDF and exit")
	discover := flag.Bool("discover", false, "list share servers on the LAN and exit")
	flag.Parse()

	if *discover {
		if err := clinet.Browse(func(addr string) {
			fmt.Printf("http://%s\n", addr)
		}); err != nil {
			log.Fatalf("discover: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	kv, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer kv.Close()

	buffer := sketch.NewPathBuffer()
	restoreSnapshot(kv, buffer)

	if *exportPath != "" {
		if err := export.PDF(*exportPath, buffer.Snapshot()); err != nil {
			log.Fatalf("export pdf: %v", err)
		}
		log.Printf("sketch exported to %s", *exportPath)
		return
	}

	if cfg.UploadURL == "" || cfg.GenerateURL == "" {
		log.Fatalf("upload-url and generate-url must be set in %s", config.Path())
	}

	sess := session.New()
	pipeline := &session.Pipeline{
		Session:  sess,
		Buffer:   buffer,
		Uploader: upload.NewHTTPUploader(cfg.UploadURL, cfg.UploadKey),
		Client:   generate.NewHTTPClient(cfg.GenerateURL, cfg.GenerateToken),
		Size:     cfg.CanvasSize,
	}

	server := clinet.NewServer(pipeline)

	// Coalesce stroke bursts: once a burst settles, persist the snapshot
	// and pre-rasterize it so submission starts from an encoded image.
	debouncer := raster.NewDebouncer(250*time.Millisecond, func(snap sketch.Snapshot) {
		pipeline.Prerender(snap)
		persistSnapshot(kv, snap)
	})
	defer debouncer.Stop()
	server.OnMutate = debouncer.Trigger

	mdnsServer, err := clinet.Advertise(cfg.ListenPort)
	if err != nil {
		log.Printf("mDNS advertise failed (continuing without): %v", err)
	} else {
		defer mdnsServer.Shutdown()
	}

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	go func() {
		log.Printf("share server on %s", clinet.ShareBase(cfg.ListenPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	debouncer.Flush()
	httpServer.Close()
}

func restoreSnapshot(kv *store.KV, buffer *sketch.PathBuffer) {
	data, err := kv.Get(snapshotKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("restore sketch: %v", err)
		}
		return
	}
	snap, err := sketch.Decode(data)
	if err != nil {
		log.Printf("restore sketch: %v", err)
		return
	}
	buffer.Load(snap)
	log.Printf("restored %d strokes from previous session", len(snap))
}

func persistSnapshot(kv *store.KV, snap sketch.Snapshot) {
	data, err := snap.Encode()
	if err != nil {
		log.Printf("persist sketch: %v", err)
		return
	}
	if err := kv.Put(snapshotKey, data); err != nil {
		log.Printf("persist sketch: %v", err)
	}
}
