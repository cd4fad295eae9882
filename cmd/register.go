package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/encoder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/population"
)

var registerCmd = &cobra.Command{
	Use:   "register NAME IMAGE|DIR...",
	Short: "Enroll a person from one or more photos",
	Long: `Encode the face in each photo and add the embeddings to the population
under NAME. Directories are expanded to the images they contain.

The first face of every image is used; images without a face are skipped.
With --strict an image must contain exactly one face of at least
MIN_FACE_SIZE pixels. When DATABASE_URL is set the user directory is updated too.

Examples:
  face-attendance register "Alice Novak" ./photos/alice/
  face-attendance register bob bob1.jpg bob2.jpg --email bob@example.com --department R&D
  face-attendance register bob ./new-bob/ --replace --strict`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("email", "", "Email stored in the user directory")
	registerCmd.Flags().String("department", "", "Department stored in the user directory")
	registerCmd.Flags().Bool("replace", false, "Replace existing face data for NAME instead of adding to it")
	registerCmd.Flags().Bool("strict", false, "Reject images without exactly one face of at least MIN_FACE_SIZE")
}

// collectImages expands directories into their image files.
func collectImages(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		images, err := capture.ListImages(p)
		if err != nil {
			return nil, err
		}
		files = append(files, images...)
	}
	if len(files) == 0 {
		return nil, errors.New("no images found")
	}
	return files, nil
}

// checkRegistrationFaces returns the face to enroll from one image, or a reason to skip it.
func checkRegistrationFaces(faces []facematch.Face, strict bool, minSize int) (facematch.Face, error) {
	if len(faces) == 0 {
		return facematch.Face{}, errors.New("no face detected")
	}
	if !strict {
		return faces[0], nil
	}
	if len(faces) > 1 {
		return facematch.Face{}, fmt.Errorf("%d faces detected, expected exactly one", len(faces))
	}
	w, h := facematch.BBoxSize(faces[0].BBox)
	if w < float64(minSize) || h < float64(minSize) {
		return facematch.Face{}, fmt.Errorf("face is %.0fx%.0f px, minimum is %dx%d", w, h, minSize, minSize)
	}
	return faces[0], nil
}

// similarIdentities returns registered ids that differ from name only in case or diacritics.
func similarIdentities(name string, known []string) []string {
	folded := facematch.FoldPersonID(name)
	var out []string
	for _, id := range known {
		if id != name && facematch.FoldPersonID(id) == folded {
			out = append(out, id)
		}
	}
	return out
}

func runRegister(cmd *cobra.Command, args []string) error {
	email := mustGetString(cmd, "email")
	department := mustGetString(cmd, "department")
	replace := mustGetBool(cmd, "replace")
	strict := mustGetBool(cmd, "strict")

	name := facematch.NormalizePersonID(args[0])
	if name == "" || name == facematch.Unknown {
		return fmt.Errorf("invalid name %q", args[0])
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	files, err := collectImages(args[1:])
	if err != nil {
		return err
	}

	backend, err := openOptionalBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	pop, err := openPopulation(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	if similar := similarIdentities(name, pop.KnownIdentities()); len(similar) > 0 {
		logger.Warn("similar identities already registered", zap.String("name", name), zap.Strings("similar", similar))
	}

	embeddings := encodeRegistrationImages(ctx, cfg, files, strict, logger)
	if len(embeddings) == 0 {
		return fmt.Errorf("no usable face found in %d image(s)", len(files))
	}

	if replace {
		var replaced int
		replaced, err = pop.Replace(ctx, name, embeddings)
		if replaced > 0 {
			fmt.Printf("Replaced %d existing embedding(s) for %s\n", replaced, name)
		}
	} else {
		err = pop.Add(ctx, name, embeddings)
	}
	if err != nil {
		if errors.Is(err, population.ErrPersist) {
			return fmt.Errorf("embeddings added but not saved: %w", err)
		}
		return fmt.Errorf("failed to add embeddings: %w", err)
	}

	if backend != nil {
		user, err := backend.Users.UpsertUser(ctx, database.User{Name: name, Email: email, Department: department})
		if err != nil {
			return fmt.Errorf("face data saved but user directory update failed: %w", err)
		}
		fmt.Printf("User directory: %s (id %d)\n", user.Name, user.ID)
	}

	fmt.Printf("Registered %s with %d embedding(s) from %d image(s)\n", name, len(embeddings), len(files))
	return nil
}

// encodeRegistrationImages sends every file to the encoder and returns the accepted embeddings.
func encodeRegistrationImages(
	ctx context.Context, cfg *config.Config, files []string, strict bool, logger *zap.Logger,
) []facematch.Embedding {
	enc := encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.DetectionModel)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Encoding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var embeddings []facematch.Embedding
	for _, file := range files {
		bar.Add(1)

		raw, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("skipping unreadable image", zap.String("file", file), zap.Error(err))
			continue
		}
		data, err := capture.PrepareImage(raw, constants.MaxRegistrationImageSize)
		if err != nil {
			logger.Warn("skipping image", zap.String("file", filepath.Base(file)), zap.Error(err))
			continue
		}
		faces, err := enc.DetectFaces(ctx, data)
		if err != nil {
			logger.Warn("skipping image, encoding failed", zap.String("file", filepath.Base(file)), zap.Error(err))
			continue
		}
		face, err := checkRegistrationFaces(faces, strict, cfg.Encoder.MinFaceSize)
		if err != nil {
			logger.Warn("skipping image", zap.String("file", filepath.Base(file)), zap.String("reason", err.Error()))
			continue
		}
		embeddings = append(embeddings, face.Embedding)
	}
	bar.Finish()
	fmt.Println()

	return embeddings
}
