// Package config loads gtab settings.
//
// # Overview
//
// Settings come from, in increasing priority: built-in defaults, a
// .gtab.yaml or .gtab.toml file in the working directory (or the file named
// by --config), GTAB_* environment variables, and command-line flags bound
// by the CLI. The result is an explicit Settings value handed to every
// engine; nothing is remembered between runs.
//
// # Usage
//
//	v, err := config.NewViper(configFile)
//	s, err := config.Load(v)
//	format, err := s.Format()
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/relevance"
	"github.com/graphtab/gtab/internal/table"
)

// Configuration keys.
const (
	KeyDirectory        = "directory"
	KeyFieldDelimiter   = "field_delimiter"
	KeyTextDelimiter    = "text_delimiter"
	KeyQuoteAll         = "quote_all"
	KeyCharset          = "charset"
	KeyLineSeparator    = "line_separator"
	KeyDB               = "db"
	KeySchema           = "schema"
	KeyLogFile          = "log_file"
	KeyRelExpression    = "relevance.expression"
	KeyRelContainments  = "relevance.containments"
	KeyRelBuiltins      = "relevance.builtins"
	KeyRelClassifiers   = "relevance.classifiers"
	KeyWatchDebounce    = "watch.debounce"
	defaultConfigName   = ".gtab"
	defaultDBPath       = ".gtab/graph.db"
	defaultTableDirName = "tables"
)

// Settings is the resolved configuration of one run.
type Settings struct {
	// Directory is the table directory.
	Directory string
	// FieldDelimiter separates cells.
	FieldDelimiter rune
	// TextDelimiter quotes cells; 0 disables quoting.
	TextDelimiter rune
	// QuoteAll quotes every non-empty cell.
	QuoteAll bool
	// Charset is an IANA character set name.
	Charset string
	// LineSeparator is table.CRLF or table.LF.
	LineSeparator string
	// DB is the SQLite database holding the graph.
	DB string
	// Schema is the YAML or TOML schema file.
	Schema string
	// LogFile enables rotating file logging when set.
	LogFile string
	// WatchDebounce is the quiet period before the watch loop syncs, as a
	// duration string.
	WatchDebounce string

	Relevance Relevance
}

// Relevance configures the relevance-filtered export.
type Relevance struct {
	Expression   string
	Containments bool
	// Builtins lists the built-in classifier IDs to register.
	Builtins    []string
	Classifiers []ClassifierSpec
}

// ClassifierSpec declares an expression classifier.
type ClassifierSpec struct {
	ID         string   `mapstructure:"id"`
	Name       string   `mapstructure:"name"`
	Types      []string `mapstructure:"types"`
	Expression string   `mapstructure:"expression"`
	Priority   int      `mapstructure:"priority"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDirectory, defaultTableDirName)
	v.SetDefault(KeyFieldDelimiter, "semicolon")
	v.SetDefault(KeyTextDelimiter, "double")
	v.SetDefault(KeyQuoteAll, false)
	v.SetDefault(KeyCharset, "UTF-8")
	v.SetDefault(KeyLineSeparator, "system")
	v.SetDefault(KeyDB, defaultDBPath)
	v.SetDefault(KeySchema, "schema.yaml")
	v.SetDefault(KeyRelExpression, relevance.DefaultExpression)
	v.SetDefault(KeyRelContainments, false)
	// builtin.container relates every node to its parent, which makes the
	// whole tree relevant. It is available but not on by default.
	v.SetDefault(KeyRelBuiltins, []string{relevance.IDReferenced, relevance.IDReferencing})
	v.SetDefault(KeyWatchDebounce, "500ms")
}

// NewViper returns a viper instance with defaults, GTAB_* environment
// binding and the config file read in. A missing default config file is not
// an error; a missing explicit one is.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("GTAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, convert.Wrap(convert.KindConfig, fmt.Errorf("failed to read config file: %w", err))
		}
	}
	return v, nil
}

// Load resolves the settings held by v. Invalid values are KindConfig errors.
func Load(v *viper.Viper) (*Settings, error) {
	field, err := ParseFieldDelimiter(v.GetString(KeyFieldDelimiter))
	if err != nil {
		return nil, err
	}
	text, err := ParseTextDelimiter(v.GetString(KeyTextDelimiter))
	if err != nil {
		return nil, err
	}
	sep, err := ParseLineSeparator(v.GetString(KeyLineSeparator))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Directory:      v.GetString(KeyDirectory),
		FieldDelimiter: field,
		TextDelimiter:  text,
		QuoteAll:       v.GetBool(KeyQuoteAll),
		Charset:        v.GetString(KeyCharset),
		LineSeparator:  sep,
		DB:             v.GetString(KeyDB),
		Schema:         v.GetString(KeySchema),
		LogFile:        v.GetString(KeyLogFile),
		WatchDebounce:  v.GetString(KeyWatchDebounce),
		Relevance: Relevance{
			Expression:   v.GetString(KeyRelExpression),
			Containments: v.GetBool(KeyRelContainments),
			Builtins:     v.GetStringSlice(KeyRelBuiltins),
		},
	}
	if err := v.UnmarshalKey(KeyRelClassifiers, &s.Relevance.Classifiers); err != nil {
		return nil, convert.Wrap(convert.KindConfig, fmt.Errorf("failed to read classifiers: %w", err))
	}
	if s.Directory == "" {
		return nil, convert.Errorf(convert.KindConfig, "table directory must be set")
	}
	if _, err := s.Format(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseFieldDelimiter accepts semicolon, comma, colon, tab, or a single
// character.
func ParseFieldDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "semicolon":
		return ';', nil
	case "comma":
		return ',', nil
	case "colon":
		return ':', nil
	case "tab":
		return '\t', nil
	}
	return single("field delimiter", s)
}

// ParseTextDelimiter accepts double, single, none, or a single character.
// none yields 0.
func ParseTextDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "double":
		return '"', nil
	case "single":
		return '\'', nil
	case "none", "":
		return 0, nil
	}
	return single("text delimiter", s)
}

// ParseLineSeparator accepts system, windows or unix.
func ParseLineSeparator(s string) (string, error) {
	switch strings.ToLower(s) {
	case "system", "":
		if runtime.GOOS == "windows" {
			return table.CRLF, nil
		}
		return table.LF, nil
	case "windows", "crlf":
		return table.CRLF, nil
	case "unix", "lf":
		return table.LF, nil
	}
	return "", convert.Errorf(convert.KindConfig, "line separator %q must be system, windows or unix", s)
}

func single(what, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, convert.Errorf(convert.KindConfig, "%s %q must be a name or a single character", what, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Format builds the table format described by s.
func (s *Settings) Format() (*table.Format, error) {
	return table.NewFormat(table.Options{
		Delimiter:     s.FieldDelimiter,
		Quote:         s.TextDelimiter,
		QuoteAll:      s.QuoteAll,
		Charset:       s.Charset,
		LineSeparator: s.LineSeparator,
	})
}

// Predicate compiles the structural-relevance expression.
func (s *Settings) Predicate() (*relevance.Predicate, error) {
	return relevance.CompilePredicate(s.Relevance.Expression)
}

// Registry builds the classifier registry: the enabled built-ins at
// priority 0, then every configured expression classifier.
func (s *Settings) Registry() (*relevance.Registry, error) {
	reg := relevance.NewRegistry()
	builtins := relevance.Builtins()
	for _, id := range s.Relevance.Builtins {
		c, ok := builtins[id]
		if !ok {
			return nil, convert.Errorf(convert.KindConfig, "unknown built-in classifier %q", id)
		}
		reg.Register(c, 0)
	}
	for _, spec := range s.Relevance.Classifiers {
		c, err := relevance.NewExprClassifier(spec.ID, spec.Name, spec.Types, spec.Expression)
		if err != nil {
			return nil, err
		}
		reg.Register(c, spec.Priority)
	}
	return reg, nil
}
