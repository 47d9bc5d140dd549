package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hanpama/protofetch/internal/prototest"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func writeDescriptorSet(t *testing.T) string {
	t.Helper()
	data, err := proto.Marshal(prototest.UserFileSet())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "set.pb")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := runCLI(t, "", "help", "resolve")
	require.NoError(t, err)
	require.Contains(t, out, "resolve FLAGS")

	out, _, err = runCLI(t, "", "help", "serve")
	require.NoError(t, err)
	require.Contains(t, out, "-server.addr")

	out, _, err = runCLI(t, "", "help")
	require.NoError(t, err)
	require.Contains(t, out, "COMMANDS:")

	_, _, err = runCLI(t, "", "help", "nope")
	require.ErrorContains(t, err, `unknown help topic "nope"`)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "", "compile")
	require.ErrorContains(t, err, `unknown command "compile"`)
	require.Contains(t, stderr, "USAGE:")

	_, _, err = runCLI(t, "")
	require.ErrorContains(t, err, "missing command")
}

func TestResolveMessage(t *testing.T) {
	set := writeDescriptorSet(t)
	input := `{"userId":"42","status":"ACTIVE","tags":["ACTIVE","INACTIVE"],"amount":"100","address":{"city":"Seoul"}}`

	out, _, err := runCLI(t, input,
		"resolve", "-descriptors", set, "-message", prototest.UserMessage,
		"-query", `{ userId status tags amount address { city } }`)
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{
		"userId":42,
		"status":"ACTIVE",
		"tags":["ACTIVE","INACTIVE"],
		"amount":100,
		"address":{"city":"Seoul"}
	}}`, out)
}

func TestResolveMapSourceFromFile(t *testing.T) {
	set := writeDescriptorSet(t)
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(inputPath, []byte(`{"userId":7,"nickname":"kim"}`), 0644))
	queryPath := filepath.Join(dir, "q.graphql")
	require.NoError(t, os.WriteFile(queryPath, []byte(`query Q($full: Boolean!) { userId nickname @include(if: $full) }`), 0644))

	out, _, err := runCLI(t, "",
		"resolve", "-descriptors", set, "-message", prototest.UserMessage,
		"-input", inputPath, "-source", "map", "-query.file", queryPath,
		"-variables", `{"full":true}`, "-log.level", "error")
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"userId":7,"nickname":"kim"}}`, out)
}

func TestResolveReportsFieldErrors(t *testing.T) {
	set := writeDescriptorSet(t)

	out, _, err := runCLI(t, `{}`,
		"resolve", "-descriptors", set, "-message", prototest.UserMessage,
		"-source", "map", "-query", `{ userId }`)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"data":{"userId":null},
		"errors":[{"message":"Cannot return null for non-nullable field userId","path":["userId"]}]
	}`, out)
}

func TestResolveArgumentErrors(t *testing.T) {
	set := writeDescriptorSet(t)

	_, stderr, err := runCLI(t, "", "resolve", "-message", prototest.UserMessage)
	require.ErrorContains(t, err, "-descriptors and -message are required")
	require.Contains(t, stderr, "resolve FLAGS")

	_, _, err = runCLI(t, "", "resolve", "-descriptors", set, "-message", prototest.UserMessage)
	require.ErrorContains(t, err, "-query or -query.file is required")

	_, _, err = runCLI(t, "{}", "resolve", "-descriptors", set, "-message", "acme.Nope", "-query", "{ userId }")
	require.ErrorContains(t, err, `protoreg: message "acme.Nope"`)

	_, _, err = runCLI(t, `{"userId":`, "resolve", "-descriptors", set, "-message", prototest.UserMessage, "-query", "{ userId }")
	require.ErrorContains(t, err, "decode acme.User")

	_, _, err = runCLI(t, "{}", "resolve", "-descriptors", set, "-message", prototest.UserMessage, "-query", "{ userId")
	require.ErrorContains(t, err, "parse query")

	_, _, err = runCLI(t, "{}", "resolve", "-descriptors", set, "-message", prototest.UserMessage,
		"-query", "{ userId }", "-source", "bean")
	require.ErrorContains(t, err, `unknown -source "bean"`)
}

func TestServeArgumentErrors(t *testing.T) {
	set := writeDescriptorSet(t)

	_, stderr, err := runCLI(t, "", "serve")
	require.ErrorContains(t, err, "-descriptors is required")
	require.Contains(t, stderr, "serve FLAGS")

	_, _, err = runCLI(t, "", "serve", "-descriptors", set, "-message", "acme.Nope")
	require.ErrorContains(t, err, `protoreg: message "acme.Nope"`)

	_, _, err = runCLI(t, "", "serve", "-descriptors", set, "-log.level", "loud")
	require.ErrorContains(t, err, "zaplog:")
}

func TestAccessors(t *testing.T) {
	set := writeDescriptorSet(t)

	out, _, err := runCLI(t, "", "accessors", "-descriptors", set, "-message", prototest.UserMessage)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 13)
	require.Equal(t, []string{"FIELD", "GRAPHQL", "TYPE", "MAP", "KEY", "ACCESSOR", "VARIANT"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"user_id", "userId", "Int64!", "userId", "getUserId", "plain"}, strings.Fields(lines[1]))
	require.Equal(t, []string{"amount", "amount", "Int64", "amount", "getAmount", "wrapper"}, strings.Fields(lines[6]))
	require.Equal(t, []string{"previous_addresses", "previousAddresses", "[Address!]", "previousAddresses", "getPreviousAddressesList", "plain"}, strings.Fields(lines[9]))
}

func TestSDL(t *testing.T) {
	set := writeDescriptorSet(t)

	out, _, err := runCLI(t, "", "sdl", "-descriptors", set, "-message", prototest.UserMessage)
	require.NoError(t, err)
	require.Contains(t, out, "type User {")
	require.Contains(t, out, "enum Status {")

	outFile := filepath.Join(t.TempDir(), "user.graphql")
	_, _, err = runCLI(t, "", "sdl", "-descriptors", set, "-message", prototest.UserMessage, "-out", outFile)
	require.NoError(t, err)
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Equal(t, out, string(written))
}

func TestRender(t *testing.T) {
	set := writeDescriptorSet(t)
	outDir := t.TempDir()

	_, _, err := runCLI(t, "", "render", "-descriptors", set, "-out", outDir)
	require.NoError(t, err)
	if _, err := os.Stat(filepath.Join(outDir, "acme", "user.proto")); err != nil {
		t.Fatalf("expected proto file: %v", err)
	}

	_, _, err = runCLI(t, "", "render", "-descriptors", set)
	require.ErrorContains(t, err, "-descriptors and -out are required")
}
