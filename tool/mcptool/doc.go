// Package mcptool bridges reactmesh tools and the Model Context Protocol.
//
// Client exposes the tools of an MCP server as tool.Tool values that agents
// can use like any local tool. Server publishes a tool registry to MCP
// clients, routing calls through the same dispatcher the engine uses.
package mcptool
