// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

/*
Package models defines Packline's packing data structures.

  - PackingLineItem: one ordered quantity of one product for one order
  - ProductRollup: a customer's line items for a single product
  - CustomerPackingSummary: the per-customer aggregate shown on kiosks
  - ActiveProductSelection: the products in play for a session date

Summaries keep a single packed counter. Progress and status are always
derived from it by Recalculate, so a summary built by Summarize and one
patched incrementally agree whenever they hold the same line items.
*/
package models
