/*
Package event defines the typed events a workflow run streams to its caller.

# Overview

Nodes and the executor write events to a Sink while a run is in flight.
A presentation layer (Server-Sent Events, a terminal, a test collector)
consumes them. Every event carries a type discriminator and only the
payload fields that make sense for that type:

	{"type":"chunk","node":"doc_expert","content":"# Title"}
	{"type":"status","node":"weather_expert","content":"completed"}
	{"type":"intent","route":"doc","content":"写一篇周报","plan":["doc"]}
	{"type":"result","content":"# 🤖 智能早报 ..."}
	{"type":"interrupt","doc":"# Draft"}
	{"type":"error","message":"router misconfigured"}
	{"type":"done","result":"rewritten text"}

# Sinks

Several Sink implementations cover the common consumers:

  - Discard drops everything
  - SinkFunc adapts a function
  - Collector records events in memory (tests, CLI transcripts)
  - Channel hands events to another goroutine and never blocks the
    producer once the consumer has gone away
  - Multi fans one event out to several sinks

# Wire format

WriteSSE frames an event as a single Server-Sent Events data line:

	data: {"type":"chunk","content":"..."}\n\n
*/
package event
