package engine

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// Manifest describes an out-of-process engine binary, trimmed from the
// teacher's PluginManifest (pkg/plugins/types.go) down to what a script
// engine plugin actually needs -- no config schema or capability map,
// since SupportedFeatures() is queried live over RPC instead of declared
// statically.
type Manifest struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Path    string `yaml:"path" json:"path"`
}

// Loader launches an engine plugin binary and returns a ScriptEngine proxy
// talking to it over net/rpc, grounded on
// kadirpekel-hector/pkg/plugins/grpc/loader.go's GRPCLoader.Load sequencing
// (ClientConfig -> Client() -> Dispense()), adapted to net/rpc's
// AllowedProtocols and without any generated stub type.
type Loader struct {
	logger hclog.Logger
}

func NewLoader() *Loader {
	return &Loader{
		logger: hclog.New(&hclog.LoggerOptions{Name: "llmspell-engine", Level: hclog.Warn, Output: os.Stderr}),
	}
}

// Loaded wraps the running plugin process alongside the ScriptEngine proxy
// so the caller can shut the subprocess down with Close.
type Loaded struct {
	Engine ScriptEngine
	client *goplugin.Client
}

func (l *Loaded) Close() { l.client.Kill() }

func (l *Loader) Load(manifest Manifest) (*Loaded, error) {
	if manifest.Path == "" {
		return nil, fmt.Errorf("engine manifest %q: path is required", manifest.Name)
	}
	if _, err := os.Stat(manifest.Path); err != nil {
		return nil, fmt.Errorf("engine manifest %q: executable not found: %w", manifest.Name, err)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]goplugin.Plugin{PluginMapKey: &ScriptEnginePlugin{}},
		Cmd:             exec.Command(manifest.Path),
		Logger:          l.logger,
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("engine %q: failed to establish rpc connection: %w", manifest.Name, err)
	}

	raw, err := rpcClient.Dispense(PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("engine %q: failed to dispense plugin: %w", manifest.Name, err)
	}

	eng, ok := raw.(ScriptEngine)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("engine %q: dispensed plugin does not implement ScriptEngine", manifest.Name)
	}

	return &Loaded{Engine: eng, client: client}, nil
}

// Serve is called by an out-of-process engine binary's main() to expose impl
// as a ScriptEngine plugin over stdio, mirroring go-plugin's standard
// plugin.Serve entrypoint.
func Serve(impl ScriptEngine) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]goplugin.Plugin{PluginMapKey: &ScriptEnginePlugin{Impl: impl}},
	})
}
