package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-midi/converter"
	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/transcode"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

var (
	serveFlags     conversionFlags
	serveAddr      string
	serveMaxUpload int64
	serveOrigins   []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves conversions over HTTP",
	Long: `Serves conversions over HTTP.

  POST /convert   request body is the audio file, response is audio/midi.
                  The optional query parameter bpm overrides tempo estimation.
  GET  /health    liveness check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd, &serveFlags)
		if err != nil {
			return err
		}

		handler, err := newServer(opts, serveMaxUpload<<20, serveOrigins)
		if err != nil {
			return err
		}

		if err := transcode.NewDecoder(opts.Decoder).CheckFFmpeg(cmd.Context()); err != nil {
			logging.Warn("Only WAV uploads will decode", logging.Fields{
				"component": "server",
				"reason":    err.Error(),
			})
		}

		logging.Info("Listening", logging.Fields{
			"component": "server",
			"addr":      serveAddr,
		})

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return srv.ListenAndServe()
	},
}

func init() {
	addConversionFlags(serveCmd, &serveFlags)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Int64Var(&serveMaxUpload, "max-upload-mb", 64, "maximum request body in MiB")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", []string{"*"}, "CORS allowed origins")
	rootCmd.AddCommand(serveCmd)
}

type server struct {
	options   *converter.Options
	converter *converter.Converter
	maxBytes  int64
	logger    logging.Logger
}

// newServer builds the HTTP handler around a converter built from opts.
func newServer(opts *converter.Options, maxBytes int64, origins []string) (http.Handler, error) {
	conv, err := converter.NewConverter(opts)
	if err != nil {
		return nil, err
	}

	s := &server{
		options:   opts,
		converter: conv,
		maxBytes:  maxBytes,
		logger: logging.WithFields(logging.Fields{
			"component": "server",
		}),
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/convert", s.handleConvert).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		ExposedHeaders: []string{"X-Run-Id", "X-Tempo", "X-Notes"},
	})
	return c.Handler(router), nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	conv, err := s.converterFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		http.Error(w, "failed to read request body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	var out bytes.Buffer
	result, err := conv.ConvertBytes(r.Context(), body, &out)
	if err != nil {
		s.logger.Error(err, "Conversion failed", logging.Fields{
			"function": "handleConvert",
		})
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("X-Run-Id", result.RunID)
	w.Header().Set("X-Tempo", strconv.FormatFloat(result.BPM, 'f', 2, 64))
	w.Header().Set("X-Notes", strconv.Itoa(len(result.Notes)))
	w.Write(out.Bytes())
}

// converterFor returns the shared converter, or a fresh one when the
// request overrides the tempo.
func (s *server) converterFor(r *http.Request) (*converter.Converter, error) {
	raw := r.URL.Query().Get("bpm")
	if raw == "" {
		return s.converter, nil
	}

	bpm, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(bpm > 0) {
		return nil, fmt.Errorf("invalid bpm %q", raw)
	}

	opts := *s.options
	opts.TempoBPM = bpm
	return converter.NewConverter(&opts)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, transcribe.ErrConfiguration),
		errors.Is(err, transcribe.ErrInvalidInput),
		errors.Is(err, transcribe.ErrInputShape):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
