// Package main hosts the gifconv CLI entrypoint and command graph.
//
// The Cobra-based command tree probes videos, converts them to animated
// GIFs, provisions the bundled ffmpeg executable, reports environment status,
// lists job history, and runs the local HTTP API. It centralizes
// configuration resolution and logger setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: conversion semantics live in internal/transcoder
// and internal/orchestrator; commands here only gather parameters, start a
// session, and render results.
package main
