package builtin

import (
	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/tool"
)

// Tools returns the built-in tools keyed by name. Additional options apply
// to the Wikipedia tool.
func Tools(optFns ...func(o *WikipediaOptions)) map[string]tool.Tool {
	return map[string]tool.Tool{
		"calculator": NewCalculator(),
		"date":       NewDate(nil),
		"wikipedia":  NewWikipedia(optFns...),
	}
}

// NewPeopleSearchAgent returns the agent that looks up people on Wikipedia.
func NewPeopleSearchAgent(wikipedia tool.Tool, optFns ...func(o *agent.Options)) (*agent.Descriptor, error) {
	fns := []func(o *agent.Options){
		agent.WithDescription("Use this tool to search for information about people."),
		agent.WithInstruction("You are a helpful assistant that can search for information about people."),
		agent.WithTools(wikipedia),
	}

	return agent.New("people_search", append(fns, optFns...)...)
}

// NewMainAgent returns the default base agent: it can hand off to the
// people search agent and use the calculator and date tools.
func NewMainAgent(optFns ...func(o *agent.Options)) (*agent.Descriptor, error) {
	tools := Tools()

	people, err := NewPeopleSearchAgent(tools["wikipedia"])
	if err != nil {
		return nil, err
	}

	fns := []func(o *agent.Options){
		agent.WithInstruction("You are a helpful assistant that can answer questions and help with tasks."),
		agent.WithSubAgents(people),
		agent.WithTools(tools["calculator"], tools["date"]),
	}

	return agent.New("main", append(fns, optFns...)...)
}
