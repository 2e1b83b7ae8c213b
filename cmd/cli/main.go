package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

// Global flags
var (
	dbPath      string
	templateDir string
	tempDir     string
	sampleRate  int
	configPath  string
	logLevel    string
	noColor     bool
)

// Exit codes. Anything the pipeline could not evaluate exits 1, so scripts
// can tell a failure apart from a rejection.
const (
	exitGranted       = 0
	exitError         = 1
	exitDenied        = 2
	exitSpoofRejected = 3
	exitNotEnrolled   = 4
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("VOICEGATE_DB_PATH", "voicegate.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&templateDir, "templates", getEnvOrDefault("VOICEGATE_TEMPLATE_DIR", ""), "Keep templates as WAV files in this directory instead of SQLite")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("VOICEGATE_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", audio.DefaultSampleRate, "Audio sample rate for processing")
	flag.StringVar(&configPath, "config", getEnvOrDefault("VOICEGATE_CONFIG", ""), "YAML file overriding pipeline parameters")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("VOICEGATE_LOG_LEVEL", ""), "Minimum log level: debug, info, warn, error")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored log output")
}

// configureLogging applies the logging flags to the default logger.
func configureLogging() error {
	if err := logger.SetLevelName(logLevel); err != nil {
		return err
	}
	if noColor {
		logger.SetColorize(false)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadPipeline() (voicegate.PipelineConfig, error) {
	if configPath == "" {
		return voicegate.DefaultPipelineConfig(), nil
	}
	return voicegate.LoadPipelineConfig(configPath)
}

// createService creates a new VoiceGate service with configured options
func createService() (voicegate.Service, error) {
	pipeline, err := loadPipeline()
	if err != nil {
		return nil, err
	}
	return voicegate.NewService(
		voicegate.WithDBPath(dbPath),
		voicegate.WithTemplateDir(templateDir),
		voicegate.WithTempDir(tempDir),
		voicegate.WithSampleRate(sampleRate),
		voicegate.WithPipeline(pipeline),
	)
}

func mustService() voicegate.Service {
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		logger.Errorf("Service initialization failed: %v", err)
		os.Exit(exitError)
	}
	return svc
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if err := configureLogging(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(exitError)
	}
	printBanner()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(exitError)
	}

	command := args[0]
	logger.Infof("Executing command: %s", command)

	var code int
	switch command {
	case "enroll":
		code = handleEnroll(args[1:])
	case "verify":
		code = handleVerify(args[1:])
	case "identify":
		code = handleIdentify(args[1:])
	case "list":
		code = handleList()
	case "delete":
		code = handleDelete(args[1:])
	case "inspect":
		code = handleInspect(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		code = exitError
	}
	os.Exit(code)
}

func printBanner() {
	banner := `
__     __    _           ____       _
\ \   / /__ (_) ___ ___ / ___| __ _| |_ ___
 \ \ / / _ \| |/ __/ _ \ |  _ / _` + "`" + ` | __/ _ \
  \ V / (_) | | (_|  __/ |_| | (_| | ||  __/
   \_/ \___/|_|\___\___|\____|\__,_|\__\___|

         Speaker Verification CLI Tool
`
	fmt.Println(banner)
}

// splitArgs separates the leading positional audio path from the flags that
// follow it, so both "verify a.wav --user x" and "verify --user x a.wav" work.
func splitArgs(args []string) (string, []string) {
	var positional string
	var flagArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-"):
			flagArgs = append(flagArgs, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flagArgs = append(flagArgs, args[i+1])
				i++
			}
		case positional == "":
			positional = arg
		default:
			flagArgs = append(flagArgs, arg)
		}
	}
	return positional, flagArgs
}

// decisionExitCode maps a decision onto the process exit status.
func decisionExitCode(d models.Decision) int {
	switch d {
	case models.Granted:
		return exitGranted
	case models.Denied:
		return exitDenied
	case models.SpoofRejected:
		return exitSpoofRejected
	case models.NotEnrolled:
		return exitNotEnrolled
	default:
		return exitError
	}
}

func decisionIcon(d models.Decision) string {
	switch d {
	case models.Granted:
		return "✅"
	case models.Denied:
		return "⛔"
	case models.SpoofRejected:
		return "🤖"
	default:
		return "❔"
	}
}

func handleEnroll(args []string) int {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)
	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	user := enrollCmd.String("user", "", "Username to enroll (required)")
	enrollCmd.Parse(flagArgs)

	if audioPath == "" || *user == "" {
		fmt.Println("Usage: voicegate enroll <audio_file> --user <name>")
		return exitError
	}

	fmt.Println("\n🔧 Initializing service...")
	svc := mustService()
	defer svc.Close()

	fmt.Println("🎙️  Processing enrollment recording...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sp, err := svc.EnrollFile(ctx, *user, audioPath)
	if err != nil {
		fmt.Printf("\n❌ Failed to enroll %s: %v\n", *user, err)
		if errors.Is(err, voicegate.ErrEnrollmentRejected) {
			fmt.Println("   The recording looks silent or synthetic. Record again closer to the microphone.")
		}
		log.Errorf("EnrollFile failed: %v", err)
		return exitError
	}

	fmt.Println("\n✅ Successfully enrolled speaker!")
	fmt.Printf("   ID:       %s\n", sp.ID)
	fmt.Printf("   Username: %s\n", sp.Username)
	fmt.Printf("   Length:   %.2fs @ %d Hz\n", float64(sp.DurationMs)/1000, sp.SampleRate)
	return exitGranted
}

func handleVerify(args []string) int {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)
	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	user := verifyCmd.String("user", "", "Claimed username (required)")
	threshold := verifyCmd.Float64("threshold", 0, "Decision threshold (0 uses the configured one)")
	verifyCmd.Parse(flagArgs)

	if audioPath == "" || *user == "" {
		fmt.Println("Usage: voicegate verify <audio_file> --user <name> [--threshold <distance>]")
		return exitError
	}

	svc := mustService()
	defer svc.Close()

	fmt.Printf("🔍 Verifying %s...\n", *user)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := svc.VerifyFile(ctx, *user, audioPath, *threshold)
	if err != nil {
		fmt.Printf("\n❌ Could not evaluate recording (%s): %v\n", voicegate.ErrorKind(err), err)
		log.Errorf("VerifyFile failed: %v", err)
		return exitError
	}

	logger.Debugf("verify %s: decision=%s distance=%.3f threshold=%.3f", *user, res.Decision, res.Distance, res.Threshold)
	fmt.Printf("\n%s %s\n", decisionIcon(res.Decision), strings.ToUpper(res.Decision.String()))
	switch res.Decision {
	case models.NotEnrolled:
		fmt.Printf("   No template for %q. Enroll first.\n", *user)
	case models.SpoofRejected:
		fmt.Printf("   Liveness failed: zcr=%.4f energy=%.5f\n", res.ZeroCrossingRate, res.Energy)
	default:
		fmt.Printf("   Distance:   %.3f (normalized %.4f)\n", res.Distance, res.NormalizedDistance)
		fmt.Printf("   Threshold:  %.3f\n", res.Threshold)
		fmt.Printf("   Path:       %d steps over %d/%d frames\n", res.PathLength, res.ProbeFrames, res.TemplateFrames)
	}
	fmt.Printf("   Elapsed:    %v\n", res.Elapsed.Round(time.Millisecond))
	return decisionExitCode(res.Decision)
}

func handleIdentify(args []string) int {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: voicegate identify <audio_file>")
		return exitError
	}
	audioPath := args[0]

	svc := mustService()
	defer svc.Close()

	fmt.Println("🔍 Comparing against every enrolled speaker...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.IdentifyFile(ctx, audioPath)
	if err != nil {
		fmt.Printf("\n❌ Could not evaluate recording (%s): %v\n", voicegate.ErrorKind(err), err)
		log.Errorf("IdentifyFile failed: %v", err)
		return exitError
	}

	fmt.Printf("\n%s %s\n", decisionIcon(res.Decision), strings.ToUpper(res.Decision.String()))
	if res.Best != nil {
		fmt.Printf("   Best match: %s (distance %.3f, threshold %.3f)\n", res.Best.Username, res.Best.Distance, res.Threshold)
	}

	maxDisplay := min(len(res.Matches), 10)
	if maxDisplay > 0 {
		fmt.Println("\n🏁 Ranking:")
	}
	for i := 0; i < maxDisplay; i++ {
		m := res.Matches[i]
		fmt.Printf("%d. %s  %.3f  %s\n", i+1, m.Username, m.Distance, m.Decision)
	}
	if len(res.Matches) > maxDisplay {
		fmt.Printf("... and %d more\n", len(res.Matches)-maxDisplay)
	}
	return decisionExitCode(res.Decision)
}

func handleList() int {
	log := logger.GetLogger()

	svc := mustService()
	defer svc.Close()

	speakers, err := svc.ListSpeakers(context.Background())
	if err != nil {
		fmt.Printf("❌ Failed to list speakers: %v\n", err)
		log.Errorf("ListSpeakers failed: %v", err)
		return exitError
	}

	if len(speakers) == 0 {
		fmt.Println("\n📭 No speakers enrolled")
		return exitGranted
	}

	fmt.Printf("\n📚 Found %d speaker(s):\n\n", len(speakers))
	for i, sp := range speakers {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, sp.Username, sp.ID)
		fmt.Printf("   Template: %.2fs @ %d Hz, enrolled %s\n",
			float64(sp.DurationMs)/1000, sp.SampleRate, sp.CreatedAt.Format(time.RFC3339))
	}
	log.Infof("Listed %d speakers", len(speakers))
	return exitGranted
}

func handleDelete(args []string) int {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: voicegate delete <speaker_id>")
		return exitError
	}
	id := args[0]

	svc := mustService()
	defer svc.Close()

	ctx := context.Background()
	sp, err := svc.GetSpeakerByID(ctx, id)
	if err != nil {
		fmt.Printf("❌ Speaker not found (ID: %s)\n", id)
		log.Warnf("Speaker %s not found: %v", id, err)
		return exitError
	}

	if err := svc.DeleteSpeaker(ctx, id); err != nil {
		fmt.Printf("❌ Failed to delete speaker: %v\n", err)
		log.Errorf("DeleteSpeaker failed: %v", err)
		return exitError
	}

	fmt.Printf("\n✅ Successfully deleted speaker:\n")
	fmt.Printf("   ID:       %s\n", sp.ID)
	fmt.Printf("   Username: %s\n", sp.Username)
	return exitGranted
}

// handleInspect prints container metadata and the liveness measurements of a
// recording without touching the template store.
func handleInspect(args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: voicegate inspect <audio_file>")
		return exitError
	}
	audioPath := args[0]

	pipeline, err := loadPipeline()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return exitError
	}
	engine, err := voicegate.NewEngine(pipeline)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return exitError
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	buf, err := audio.LoadFile(ctx, audioPath, tempDir, sampleRate)
	if err != nil {
		fmt.Printf("❌ Failed to load %s: %v\n", audioPath, err)
		return exitError
	}

	meta := audio.MetadataFromBuffer(audioPath, buf)
	if audio.FFmpegAvailable() {
		if probed, err := audio.ReadMetadataFFmpeg(ctx, audioPath); err == nil {
			meta = probed
		} else {
			logger.Warnf("ffprobe failed, falling back to decoded metadata: %v", err)
		}
	}

	fmt.Printf("\n📄 %s\n", meta.Filename)
	fmt.Printf("   Format:   %s (%s)\n", meta.Format, meta.Codec)
	fmt.Printf("   Source:   %d Hz, %d ch, %d bit, %.2fs\n", meta.SampleRate, meta.Channels, meta.BitDepth, meta.DurationSec)
	if meta.Encoder != "" {
		fmt.Printf("   Encoder:  %s\n", meta.Encoder)
	}

	report, err := engine.CheckLiveness(buf)
	if err != nil {
		fmt.Printf("❌ Could not analyse recording (%s): %v\n", voicegate.ErrorKind(err), err)
		return exitError
	}
	cfg := engine.Config()
	fmt.Printf("\n🫁 Liveness @ %d Hz over %d frames\n", buf.SampleRate, report.Frames)
	fmt.Printf("   ZCR:      %.4f (min %.4f)\n", report.ZeroCrossingRate, cfg.ZCRThreshold)
	fmt.Printf("   Energy:   %.5f (min %.5f)\n", report.Energy, cfg.EnergyThreshold)
	if report.Live {
		fmt.Println("   Result:   live")
	} else {
		fmt.Printf("   Result:   rejected (%s)\n", report.Reason)
	}

	if seq, err := engine.Extract(buf); err == nil {
		fmt.Printf("   Features: %d frames x %d coefficients\n", seq.Len(), seq.Dim())
	} else {
		fmt.Printf("   Features: unavailable (%s)\n", voicegate.ErrorKind(err))
	}
	return exitGranted
}

func printUsage() {
	fmt.Println("VoiceGate - Speaker Verification CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>          Path to SQLite database (env: VOICEGATE_DB_PATH, default: voicegate.sqlite3)")
	fmt.Println("  --templates <dir>    Store templates as WAV files here (env: VOICEGATE_TEMPLATE_DIR)")
	fmt.Println("  --temp <dir>         Temporary directory for audio conversion (env: VOICEGATE_TEMP_DIR)")
	fmt.Println("  --rate <hz>          Audio sample rate (default: 16000)")
	fmt.Println("  --config <file>      Pipeline YAML overrides (env: VOICEGATE_CONFIG)")
	fmt.Println("  --log-level <level>  debug, info, warn or error (env: VOICEGATE_LOG_LEVEL)")
	fmt.Println("  --no-color           Disable colored log output")
	fmt.Println("\nUsage:")
	fmt.Println("  voicegate [global-options] enroll <audio_file> --user <name>")
	fmt.Println("  voicegate [global-options] verify <audio_file> --user <name> [--threshold <distance>]")
	fmt.Println("  voicegate [global-options] identify <audio_file>")
	fmt.Println("  voicegate [global-options] list")
	fmt.Println("  voicegate [global-options] delete <speaker_id>")
	fmt.Println("  voicegate [global-options] inspect <audio_file>")
	fmt.Println("\nExit codes:")
	fmt.Println("  0 granted, 2 denied, 3 spoof rejected, 4 not enrolled, 1 error")
	fmt.Println("\nExamples:")
	fmt.Println("  voicegate enroll alice.wav --user alice")
	fmt.Println("  voicegate --config strict.yaml verify probe.m4a --user alice")
	fmt.Println("  voicegate --templates ./users identify probe.wav")
}
