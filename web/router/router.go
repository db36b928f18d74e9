package router

import (
	"net/http"

	"mjpegplayback/logger"
	"mjpegplayback/web/controller"

	"github.com/gorilla/mux"
)

func InitRouter(controller *controller.Controller, logger *logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(logger.LogRequest)

	router.HandleFunc("/", controller.Root).Methods(http.MethodGet)
	router.HandleFunc("/index.html", controller.UpdatePlayback).Methods(http.MethodPost)
	router.HandleFunc("/index.html{rest:(?:/.*)?}", controller.IndexPage).Methods(http.MethodGet)
	router.HandleFunc("/playbackStyle.css", controller.Stylesheet).Methods(http.MethodGet)
	router.HandleFunc("/stream.mjpg{rest:(?:/.*)?}", controller.ShowStream).Methods(http.MethodGet)
	router.HandleFunc(`/{file:[^/]+\.mjpeg}{rest:(?:/.*)?}`, controller.SelectFile).Methods(http.MethodGet)

	apirouter := router.PathPrefix("/api").Subrouter()
	apirouter.HandleFunc("/status", controller.DeviceStatus).Methods(http.MethodGet)
	apirouter.HandleFunc("/sessions", controller.ListSessions).Methods(http.MethodGet)
	apirouter.HandleFunc("/export", controller.ExportSession).Methods(http.MethodPost)

	filerouter := router.PathPrefix("/file").Subrouter()
	filerouter.HandleFunc("/upload", controller.UploadFile).Methods(http.MethodPost)
	filerouter.HandleFunc("/list", controller.ListFiles).Methods(http.MethodGet)

	return router
}
