package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsAgentSessionsFinal = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_sessions_final",
		Help:         "stats_agent_sessions_final provides total sessions terminated with a final answer",
		RequiredTags: []string{"model"},
	}

	StatsAgentSessionsBudget = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_sessions_budget",
		Help:         "stats_agent_sessions_budget provides total sessions terminated by the iteration budget",
		RequiredTags: []string{"model"},
	}

	StatsAgentSessionsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_sessions_failed",
		Help:         "stats_agent_sessions_failed provides total sessions terminated with an error",
		RequiredTags: []string{"model", "kind"},
	}

	StatsAgentIterations = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_iterations",
		Help:         "stats_agent_iterations provides total completed tool iterations",
		RequiredTags: []string{"model"},
	}

	StatsLLMCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_succeeded",
		Help:         "stats_llm_calls_succeeded provides total model calls succeeded",
		RequiredTags: []string{"model"},
	}

	StatsLLMCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_failed",
		Help:         "stats_llm_calls_failed provides total model calls failed",
		RequiredTags: []string{"model"},
	}

	StatsLLMCallsTimedOut = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_timedout",
		Help:         "stats_llm_calls_timedout provides total model calls timed out",
		RequiredTags: []string{"model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"model"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfAgentSession = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_agent_session",
		Help:         "perf_agent_session provides duration of agent session",
		RequiredTags: []string{"model"},
	}

	PerfLLMCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_llm_call",
		Help:         "perf_llm_call provides duration of model call",
		RequiredTags: []string{"model"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgentSession,
	&PerfLLMCall,
	&PerfToolCall,
	&StatsAgentIterations,
	&StatsAgentSessionsBudget,
	&StatsAgentSessionsFailed,
	&StatsAgentSessionsFinal,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMCallsFailed,
	&StatsLLMCallsSucceeded,
	&StatsLLMCallsTimedOut,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
