package engine

import (
	"context"
	"encoding/json"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// Handshake is the magic-cookie handshake both sides of an engine plugin
// connection must agree on before go-plugin will dispense anything, grounded
// on kadirpekel-hector's pkg/plugins/grpc/loader.go's handshakeConfig (same
// cookie-key/value shape, renamed off the teacher's single project name).
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "LLMSPELL_ENGINE_PLUGIN",
	MagicCookieValue: "llmspell_engine_v1",
}

// PluginMapKey is the name under which an engine plugin registers itself
// with the go-plugin client/server, mirroring the teacher's
// string(manifest.Type) dispense key.
const PluginMapKey = "engine"

// ScriptEnginePlugin adapts a ScriptEngine to go-plugin's net/rpc Plugin
// interface. The teacher's equivalent (pkg/plugins/grpc) depends on
// protoc-generated .pb.go stubs this exercise cannot regenerate without the
// Go toolchain; go-plugin's net/rpc transport needs no code generation, so
// Server/Client here just exchange encoding/gob values over the plugin's
// stdio-muxed connection instead.
type ScriptEnginePlugin struct {
	Impl ScriptEngine
}

func (p *ScriptEnginePlugin) Server(b *goplugin.MuxBroker) (interface{}, error) {
	return &engineRPCServer{impl: p.Impl, broker: b}, nil
}

func (p *ScriptEnginePlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &engineRPCClient{client: c, broker: b}, nil
}

// --- host-side stub: implements ScriptEngine by calling the plugin process ---

type engineRPCClient struct {
	client *rpc.Client
	broker *goplugin.MuxBroker
}

func (c *engineRPCClient) GetEngineName() string {
	var reply string
	_ = c.client.Call("Plugin.GetEngineName", new(struct{}), &reply)
	return reply
}

func (c *engineRPCClient) SupportedFeatures() Features {
	var reply Features
	_ = c.client.Call("Plugin.SupportedFeatures", new(struct{}), &reply)
	return reply
}

// InjectAPIs starts a broker-served RPC facade over registry/providers and
// hands the plugin process its broker id, so the out-of-process engine can
// call back into the host for tool invocation -- the standard go-plugin
// bidirectional-RPC pattern (a server-side Dial against a client-side
// AcceptAndServe) rather than anything fabricated for this bridge.
func (c *engineRPCClient) InjectAPIs(registry ComponentRegistry, providers ProviderManager) error {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &hostAPIServer{registry: registry, providers: providers})

	var reply struct{}
	return c.client.Call("Plugin.InjectAPIs", injectAPIsArgs{HostAPIBrokerID: id}, &reply)
}

func (c *engineRPCClient) ExecuteScript(ctx context.Context, source string) (ScriptOutput, *ScriptError) {
	var reply executeScriptReply
	if err := c.client.Call("Plugin.ExecuteScript", executeScriptArgs{Source: source}, &reply); err != nil {
		return ScriptOutput{}, &ScriptError{Kind: ScriptErrorRuntime, Message: err.Error()}
	}
	if reply.ScriptErr != nil {
		return ScriptOutput{}, reply.ScriptErr
	}
	return reply.Output, nil
}

// ExecuteScriptStreaming has no incremental wire protocol over plain
// net/rpc; it runs the script to completion and delivers a single terminal
// chunk, same degenerate behavior as nativeEngine's streaming path.
func (c *engineRPCClient) ExecuteScriptStreaming(ctx context.Context, source string) (<-chan ScriptChunk, error) {
	ch := make(chan ScriptChunk, 1)
	go func() {
		defer close(ch)
		out, scriptErr := c.ExecuteScript(ctx, source)
		if scriptErr != nil {
			ch <- ScriptChunk{Done: true, Err: scriptErr}
			return
		}
		ch <- ScriptChunk{Data: out.Output, Done: true}
	}()
	return ch, nil
}

func (c *engineRPCClient) SetScriptArgs(args map[string]string) error {
	var reply struct{}
	return c.client.Call("Plugin.SetScriptArgs", args, &reply)
}

func (c *engineRPCClient) GetCompletionCandidates(line string, cursor int) ([]CompletionCandidate, error) {
	var reply []CompletionCandidate
	err := c.client.Call("Plugin.GetCompletionCandidates", completionArgs{Line: line, Cursor: cursor}, &reply)
	return reply, err
}

func (c *engineRPCClient) SetDebugContext(dbg *DebugContext) error {
	var reply struct{}
	return c.client.Call("Plugin.SetDebugContext", dbg, &reply)
}

// --- plugin-side server: unwraps RPC calls onto the real ScriptEngine ---

type injectAPIsArgs struct {
	HostAPIBrokerID uint32
}

type executeScriptArgs struct {
	Source string
}

type executeScriptReply struct {
	Output    ScriptOutput
	ScriptErr *ScriptError
}

type completionArgs struct {
	Line   string
	Cursor int
}

type engineRPCServer struct {
	impl   ScriptEngine
	broker *goplugin.MuxBroker
}

func (s *engineRPCServer) GetEngineName(args interface{}, reply *string) error {
	*reply = s.impl.GetEngineName()
	return nil
}

func (s *engineRPCServer) SupportedFeatures(args interface{}, reply *Features) error {
	*reply = s.impl.SupportedFeatures()
	return nil
}

func (s *engineRPCServer) InjectAPIs(args injectAPIsArgs, reply *struct{}) error {
	conn, err := s.broker.Dial(args.HostAPIBrokerID)
	if err != nil {
		return err
	}
	client := rpc.NewClient(conn)
	api := &hostAPIClient{client: client}
	return s.impl.InjectAPIs(api, api)
}

func (s *engineRPCServer) ExecuteScript(args executeScriptArgs, reply *executeScriptReply) error {
	out, scriptErr := s.impl.ExecuteScript(context.Background(), args.Source)
	reply.Output = out
	reply.ScriptErr = scriptErr
	return nil
}

func (s *engineRPCServer) SetScriptArgs(args map[string]string, reply *struct{}) error {
	return s.impl.SetScriptArgs(args)
}

func (s *engineRPCServer) GetCompletionCandidates(args completionArgs, reply *[]CompletionCandidate) error {
	candidates, err := s.impl.GetCompletionCandidates(args.Line, args.Cursor)
	*reply = candidates
	return err
}

func (s *engineRPCServer) SetDebugContext(dbg *DebugContext, reply *struct{}) error {
	return s.impl.SetDebugContext(dbg)
}

// --- bidirectional host-API facade: lets the plugin call back into the host ---

type invokeToolArgs struct {
	Name  string
	Input json.RawMessage
}

// hostAPIServer runs on the host side (AcceptAndServe), fronting the real
// ComponentRegistry/ProviderManager for the plugin process to call.
type hostAPIServer struct {
	registry  ComponentRegistry
	providers ProviderManager
}

func (h *hostAPIServer) ListTools(args interface{}, reply *[]string) error {
	*reply = h.registry.ListTools()
	return nil
}

func (h *hostAPIServer) InvokeTool(args invokeToolArgs, reply *json.RawMessage) error {
	result, err := h.registry.InvokeTool(context.Background(), args.Name, args.Input)
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (h *hostAPIServer) ListProviders(args interface{}, reply *[]string) error {
	*reply = h.providers.ListProviders()
	return nil
}

// hostAPIClient runs on the plugin side (Dial), implementing both
// ComponentRegistry and ProviderManager by calling back to hostAPIServer.
type hostAPIClient struct {
	client *rpc.Client
}

func (h *hostAPIClient) ListTools() []string {
	var reply []string
	_ = h.client.Call("Plugin.ListTools", new(struct{}), &reply)
	return reply
}

func (h *hostAPIClient) InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	var reply json.RawMessage
	err := h.client.Call("Plugin.InvokeTool", invokeToolArgs{Name: name, Input: input}, &reply)
	return reply, err
}

func (h *hostAPIClient) ListProviders() []string {
	var reply []string
	_ = h.client.Call("Plugin.ListProviders", new(struct{}), &reply)
	return reply
}
