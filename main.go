package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mjpegplayback/app"
	"mjpegplayback/config"
	"mjpegplayback/logger"
	"mjpegplayback/web/controller"
	"mjpegplayback/web/router"

	flag "github.com/spf13/pflag"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path of the .env file to load")
	port := flag.StringP("port", "p", "", "Listen port, overrides PORT")
	videos := flag.String("videos", "", "Folder holding the .mjpeg sources, overrides VIDEOS_FOLDER")
	flag.Parse()

	config.Load(*envFile)

	if *port != "" {
		config.Conf.Port = *port
	}
	if *videos != "" {
		config.Conf.VideosFolder = *videos
	}

	conf := config.GetConfig()
	logfile := filepath.Join(conf.LogFolder, fmt.Sprintf("mjpegplayback_logs_%s.log", time.Now().Format("2006-01-02_15:04:05")))

	logman, err := logger.NewLogger(logfile)

	if err != nil {
		log.Fatal(err)
	}

	svc, err := app.NewApp(conf, logman)

	if err != nil {
		logman.LogError(err, "Error creating app")
		log.Fatal(err)
	}

	svc.UploadLogs(logfile)

	ctrl := controller.NewController(svc, logman)
	r := router.InitRouter(ctrl, logman)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch

		logman.LogInfo("Shutting down", "signal", sig.String())

		// Streams only end once their sessions stop.
		svc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logman.LogError(err, "Error shutting down server")
		}
	}()

	logman.LogInfo("Starting server", "port", conf.Port, "videos_folder", conf.VideosFolder)

	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logman.LogError(err, "Error starting server")
	}
}
