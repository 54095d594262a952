package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jmorganca/seqprep/envconfig"
	"github.com/jmorganca/seqprep/format"
	"github.com/jmorganca/seqprep/sequence"
	"github.com/jmorganca/seqprep/version"
	"github.com/jmorganca/seqprep/vocab"
)

const (
	sourceVocabFile = "source.vocab"
	targetVocabFile = "target.vocab"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoFormatHeaders(false)
	return table
}

// vocabDir resolves the --vocab-dir flag, falling back to SEQPREP_VOCAB_DIR
// and then the working directory.
func vocabDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("vocab-dir"); dir != "" {
		return dir
	}

	if envconfig.VocabDir != "" {
		return envconfig.VocabDir
	}

	return "."
}

func loadVocabs(dir string) (source, target *vocab.Vocabulary, err error) {
	source, err = vocab.Load(filepath.Join(dir, sourceVocabFile))
	if err != nil {
		return nil, nil, err
	}

	target, err = vocab.Load(filepath.Join(dir, targetVocabFile))
	if err != nil {
		return nil, nil, err
	}

	return source, target, nil
}

func VocabBuildHandler(cmd *cobra.Command, args []string) error {
	c, err := loadCorpus(cmd, args[0], args[1])
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("output")
	source, target := vocab.Build(c.Source), vocab.Build(c.Target)
	if err := source.Save(filepath.Join(dir, sourceVocabFile)); err != nil {
		return err
	}

	if err := target.Save(filepath.Join(dir, targetVocabFile)); err != nil {
		return err
	}

	stats := c.Stats()
	table := newTable(cmd.OutOrStdout(), "SIDE", "VOCAB", "TOKENS", "LONGEST", "FILE")
	table.Append([]string{"source", strconv.Itoa(source.Size()), format.HumanNumber(uint64(stats.Source.Tokens)), strconv.Itoa(stats.Source.MaxTokens), filepath.Join(dir, sourceVocabFile)})
	table.Append([]string{"target", strconv.Itoa(target.Size()), format.HumanNumber(uint64(stats.Target.Tokens)), strconv.Itoa(stats.Target.MaxTokens), filepath.Join(dir, targetVocabFile)})
	table.Render()
	return nil
}

func VocabShowHandler(cmd *cobra.Command, args []string) error {
	v, err := vocab.Load(args[0])
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	values := v.Values()
	if limit >= 0 && limit < len(values) {
		values = values[:limit]
	}

	table := newTable(cmd.OutOrStdout(), "ID", "TOKEN")
	for id, token := range values {
		table.Append([]string{strconv.Itoa(id), token})
	}
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d tokens\n", v.Size())
	return nil
}

func vocabFor(cmd *cobra.Command) (*vocab.Vocabulary, bool, error) {
	target, _ := cmd.Flags().GetBool("target")
	name := sourceVocabFile
	if target {
		name = targetVocabFile
	}

	path, _ := cmd.Flags().GetString("vocab")
	if path == "" {
		path = filepath.Join(vocabDir(cmd), name)
	}

	v, err := vocab.Load(path)
	return v, target, err
}

func EncodeHandler(cmd *cobra.Command, args []string) error {
	v, target, err := vocabFor(cmd)
	if err != nil {
		return err
	}

	line := strings.Join(args, " ")
	var ids []int32
	if target {
		ids = sequence.EncodeTarget(line, v)
	} else {
		ids = sequence.EncodeSource(line, v)
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(int64(id), 10)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(strs, " "))
	return nil
}

func DecodeHandler(cmd *cobra.Command, args []string) error {
	v, _, err := vocabFor(cmd)
	if err != nil {
		return err
	}

	ids := make([]int32, 0, len(args))
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", field, err)
			}

			ids = append(ids, int32(id))
		}
	}

	tokens, err := sequence.Decode(ids, v)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tokens, " "))
	return nil
}

func appendEnvDocs(cmd *cobra.Command, names ...string) {
	vars := envconfig.AsMap()
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, name := range names {
		if e, ok := vars[name]; ok {
			fmt.Fprintf(&sb, "      %-20s %s\n", e.Name, e.Description)
		}
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "seqprep",
		Short:         "Prepare and decode token sequences for sequence-to-sequence training",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cobra.EnableCommandSorting = false

	vocabCmd := &cobra.Command{
		Use:   "vocab",
		Short: "Build and inspect vocabularies",
	}

	vocabBuildCmd := &cobra.Command{
		Use:   "build SOURCE TARGET",
		Short: "Build source and target vocabularies from a parallel corpus",
		Args:  cobra.ExactArgs(2),
		RunE:  VocabBuildHandler,
	}
	vocabBuildCmd.Flags().StringP("output", "o", ".", "Directory to write source.vocab and target.vocab")

	vocabShowCmd := &cobra.Command{
		Use:   "show FILE",
		Short: "List the tokens of a vocabulary",
		Args:  cobra.ExactArgs(1),
		RunE:  VocabShowHandler,
	}
	vocabShowCmd.Flags().Int("limit", -1, "Show at most this many tokens")

	vocabCmd.AddCommand(vocabBuildCmd, vocabShowCmd)

	encodeCmd := &cobra.Command{
		Use:   "encode TEXT...",
		Short: "Encode a line into token ids",
		Args:  cobra.MinimumNArgs(1),
		RunE:  EncodeHandler,
	}

	decodeCmd := &cobra.Command{
		Use:   "decode ID...",
		Short: "Decode token ids back into text, dropping padding",
		Args:  cobra.MinimumNArgs(1),
		RunE:  DecodeHandler,
	}

	for _, c := range []*cobra.Command{encodeCmd, decodeCmd} {
		c.Flags().String("vocab", "", "Vocabulary file (default <vocab-dir>/source.vocab or target.vocab)")
		c.Flags().String("vocab-dir", "", "Directory holding source.vocab and target.vocab")
		c.Flags().Bool("target", false, "Use the target vocabulary")
	}

	batchesCmd := &cobra.Command{
		Use:   "batches SOURCE TARGET",
		Short: "Run the batching pipeline over a parallel corpus and report batch shapes",
		Args:  cobra.ExactArgs(2),
		RunE:  BatchesHandler,
	}
	batchesCmd.Flags().Int("batch-size", 0, "Examples per batch (default SEQPREP_BATCH_SIZE)")
	batchesCmd.Flags().Int("epochs", 1, "Passes over the corpus")
	batchesCmd.Flags().Bool("keep-remainder", false, "Emit the final short batch instead of dropping it")
	batchesCmd.Flags().Bool("true-lengths", false, "Record unpadded row lengths")
	batchesCmd.Flags().StringSlice("set", nil, "Override a batching setting, e.g. --set workers=4")
	batchesCmd.Flags().Bool("quiet", false, "Do not render a progress bar")
	appendEnvDocs(batchesCmd, "SEQPREP_BATCH_SIZE", "SEQPREP_WORKERS", "SEQPREP_DEBUG")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the encode/decode service",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
	serveCmd.Flags().String("vocab-dir", "", "Directory holding source.vocab and target.vocab")
	appendEnvDocs(serveCmd, "SEQPREP_HOST", "SEQPREP_ORIGINS", "SEQPREP_VOCAB_DIR", "SEQPREP_WORKERS", "SEQPREP_DEBUG")

	rootCmd.AddCommand(
		vocabCmd,
		encodeCmd,
		decodeCmd,
		batchesCmd,
		serveCmd,
	)

	return rootCmd
}
