/*
Package log provides structured logging for nexuscore using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

nexuscore's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("raftcluster")             │          │
	│  │  - WithNodeID("node-abc123")                │          │
	│  │  - WithPeerID("peer-2")                     │          │
	│  │  - WithConfigKey("app.yaml", "DEFAULT_GROUP")│          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "raftcluster",              │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "raft leader elected"         │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF raft leader elected component=raftcluster │ │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all nexuscore packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add node ID context
  - WithPeerID: Add peer node ID context
  - WithConfigKey: Add data_id/group context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "configstore: rebuilding cache, 482 primary records scanned"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "raftcluster: bootstrapped single-node cluster"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "peermgr: peer node-2 marked invalid after 15s silence"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "configstore: history write failed for seq 9301"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to initialize Raft: %v"

# Usage

Initializing the Logger:

	import "github.com/nexuscore/nexuscore/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/nexuscore.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("nexuscore node starting")
	log.Debug("checking existing raft state")
	log.Warn("high listener waiter count detected")
	log.Error("failed to connect to peer")
	log.Fatal("cannot start without a data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("node_id", "node-1").
		Int("peers", 3).
		Msg("raft cluster bootstrapped")

	log.Logger.Error().
		Err(err).
		Str("node_id", "node-abc").
		Msg("peer liveness check failed")

Component Loggers:

	// Create component-specific logger
	raftLog := log.WithComponent("raftcluster")
	raftLog.Info().Msg("starting raft adapter")
	raftLog.Debug().Str("node_id", "node-1").Msg("proposing own address")

	// Multiple context fields
	peerLog := log.WithComponent("peermgr").
		With().Str("node_id", "node-abc").
		Str("peer_id", "node-2").Logger()
	peerLog.Info().Msg("peer liveness tick")
	peerLog.Error().Err(err).Msg("ping failed")

Context Logger Helpers:

	// Node-specific logs
	nodeLog := log.WithNodeID("node-abc123")
	nodeLog.Info().Msg("Node joined cluster")

	// Peer-specific logs
	peerLog := log.WithPeerID("peer-2")
	peerLog.Info().Msg("Peer marked invalid")

	// Config-key-specific logs
	cfgLog := log.WithConfigKey("app.yaml", "DEFAULT_GROUP")
	cfgLog.Info().Msg("Config entry updated")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/nexuscore/nexuscore/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("nexuscore starting")

		// Component-specific logging
		raftLog := log.WithComponent("raftcluster")
		raftLog.Info().
			Str("node_id", "node-1").
			Int("peers", 3).
			Msg("raft cluster joined")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "transport").
			Msg("failed to reach peer")

		log.Info("nexuscore stopped")
	}

# Integration Points

This package integrates with:

  - internal/raftcluster: Logs join, forward and own-address proposal failures and malformed peer frames
  - internal/configstore: Logs failed primary/history writes and records skipped on rebuild
  - internal/peermgr: Logs ping failures and peers marked invalid
  - internal/naming: Logs malformed naming frames and broadcast failures
  - internal/transport: Logs dial and write failures and unknown frame types (no retry)

internal/listener and pkg/api do not log.

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"raftcluster","time":"2024-10-13T10:30:00Z","message":"raft cluster bootstrapped"}
	{"level":"info","component":"configstore","node_id":"node-1","time":"2024-10-13T10:30:01Z","message":"config entry applied"}
	{"level":"warn","component":"peermgr","peer_id":"node-2","time":"2024-10-13T10:30:02Z","message":"peer marked invalid after 15s silence"}

Console Format (Development):

	2024-10-13T10:30:00Z INF raft cluster bootstrapped component=raftcluster
	2024-10-13T10:30:01Z INF config entry applied component=configstore node_id=node-1
	2024-10-13T10:30:02Z WRN peer marked invalid after 15s silence component=peermgr peer_id=node-2

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

nexuscore doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/nexuscore
	/var/log/nexuscore/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u nexuscore -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"raftcluster" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="peermgr"} |= "invalid"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "raftcluster"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:nexuscore component:raftcluster status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check nexuscore process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "forward to leader"
  - Description: Followers repeatedly failing to reach the current leader
  - Action: Check peer connectivity, raft_node_addr configuration

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (node ID, peer ID, config key)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
