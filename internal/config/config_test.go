package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nsf/jsondiff"
)

func writeTestFile(tb testing.TB, content string) string {
	file := filepath.Join(tb.TempDir(), "config.json")
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		tb.Fatal("Error:", err)
	}
	return file
}

func TestLoadFromFile(t *testing.T) {
	expectedConfig := Config{
		LogLevel:  LogLevel(log.DEBUG),
		SourceDir: "/home/alice/solutions",
		HTTP:      HTTP{Timeout: Duration(10 * time.Second)},
		Poll: Poll{
			Attempts: 30,
			Delay:    Duration(time.Second),
			Timeout:  Duration(5 * time.Minute),
		},
		Judges: map[string]Account{
			"uva": {Username: "alice", Password: "env:UVA_PASSWORD"},
		},
		History: &DB{Options: SQLiteOptions{Path: ":memory:"}},
		Archive: &Storage{Options: LocalStorageOptions{SourcesDir: "/tmp/sources"}},
	}
	expectedConfigData, err := json.Marshal(expectedConfig)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "deleted.json")); err == nil {
		t.Fatal("Expected error for config from deleted file")
	}
	config, err := LoadFromFile(writeTestFile(t, string(expectedConfigData)))
	if err != nil {
		t.Fatal("Error:", err)
	}
	configData, err := json.Marshal(config)
	if err != nil {
		t.Fatal("Error:", err)
	}
	options := jsondiff.DefaultConsoleOptions()
	if diff, desc := jsondiff.Compare(expectedConfigData, configData, &options); diff != jsondiff.FullMatch {
		t.Fatalf("Configs are different: %s", desc)
	}
	account, ok := config.Account("UVa")
	if !ok {
		t.Fatal("Account is not found")
	}
	testExpect(t, account.Username, "alice")
}

const templateConfig = `
{
	"source_dir": {{ "solutions" | json }},
	"judges": {
		"codeforces": {
			"username": {{ env "JUDGE_TEST_USER" | json }},
			"password": {{ file "SECRET_FILE" | json }}
		}
	},
	"history": {
		"driver": "sqlite",
		"options": {"path": ":memory:"}
	}
}
`

func TestLoadFromTemplateFile(t *testing.T) {
	secretFile := writeTestFile(t, "secret\n")
	t.Setenv("JUDGE_TEST_USER", "bob")
	cfg, err := LoadFromFile(writeTestFile(t, strings.ReplaceAll(
		templateConfig, "SECRET_FILE", secretFile,
	)))
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, cfg.SourceDir, "solutions")
	testExpect(t, cfg.Judges["codeforces"].Username, "bob")
	testExpect(t, cfg.Judges["codeforces"].Password, Secret("secret"))
	if opts, ok := cfg.History.Options.(SQLiteOptions); !ok {
		t.Fatalf("Invalid options type: %T", cfg.History.Options)
	} else {
		testExpect(t, opts.Path, ":memory:")
	}
	testExpect(t, cfg.LogLevel, LogLevel(log.INFO))
}

func TestLoadFromInvalidFile(t *testing.T) {
	for _, content := range []string{
		"invalid data",
		`{"http": {{ invalid }} }`,
		`{"http": { {{ .unknown }} } }`,
		`{"log_level": "verbose"}`,
		`{"poll": {"delay": "soon"}}`,
		`{"history": {"driver": "mysql", "options": {}}}`,
	} {
		if _, err := LoadFromFile(writeTestFile(t, content)); err == nil {
			t.Fatalf("Expected error for config %q", content)
		}
	}
}

func TestPostgresConfig(t *testing.T) {
	data := `{"driver":"postgres","options":{"hosts":["localhost:5432"],"user":"judge","password":"env:JUDGE_TEST_PG","name":"judge"}}`
	var cfg DB
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatal("Error:", err)
	}
	opts, ok := cfg.Options.(PostgresOptions)
	if !ok {
		t.Fatalf("Invalid options type: %T", cfg.Options)
	}
	testExpect(t, opts.Hosts[0], "localhost:5432")
	if _, err := cfg.Create(); err == nil {
		t.Fatal("Expected error for unset password variable")
	}
}

func TestS3StorageConfig(t *testing.T) {
	data := `{"driver":"s3","options":{"region":"us-east-1","bucket":"sources","endpoint":"http://localhost:9000","use_path_style":true}}`
	var cfg Storage
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatal("Error:", err)
	}
	opts, ok := cfg.Options.(S3StorageOptions)
	if !ok {
		t.Fatalf("Invalid options type: %T", cfg.Options)
	}
	testExpect(t, opts.Bucket, "sources")
	testExpect(t, opts.UsePathStyle, true)
	if err := json.Unmarshal([]byte(`{"driver":"ftp"}`), &cfg); err == nil {
		t.Fatal("Expected error")
	}
}

func TestStorageConfigValidation(t *testing.T) {
	for _, data := range []string{
		`{"driver":"local"}`,
		`{"driver":"local","options":{"sources_dir":""}}`,
		`{"driver":"s3","options":{"region":"us-east-1"}}`,
		`{"options":{"sources_dir":"/tmp/sources"}}`,
	} {
		var cfg Storage
		if err := json.Unmarshal([]byte(data), &cfg); err == nil {
			t.Fatalf("Expected error for %s", data)
		}
	}
	var cfg Storage
	if err := json.Unmarshal([]byte(`{"driver":"local","options":{"sources_dir":"/tmp/sources"}}`), &cfg); err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, cfg.Options.Driver(), LocalStorageDriver)
	if _, err := json.Marshal(Storage{}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestSecret(t *testing.T) {
	value, err := Secret("plain").Secret()
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "plain")
	t.Setenv("JUDGE_TEST_SECRET", "from-env")
	value, err = Secret("env:JUDGE_TEST_SECRET").Secret()
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "from-env")
	if _, err := Secret("env:JUDGE_TEST_MISSING").Secret(); err == nil {
		t.Fatal("Expected error")
	}
	file := writeTestFile(t, "from-file\r\n")
	value, err = Secret("file:" + file).Secret()
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, value, "from-file")
	if _, err := Secret("file:" + file + "-invalid").Secret(); err == nil {
		t.Fatal("Expected error")
	}
	testExpect(t, Secret("").Empty(), true)
}

func TestSQLiteCreate(t *testing.T) {
	cfg := DB{Options: SQLiteOptions{Path: ":memory:"}}
	conn, err := cfg.Create()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := conn.Exec("SELECT 1"); err != nil {
		t.Fatal("Error:", err)
	}
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	tb.Helper()
	if output != answer {
		tb.Fatalf(
			"Expected %q, got %q",
			fmt.Sprint(answer), fmt.Sprint(output),
		)
	}
}
