/*
 * relaycore: session core for multi-protocol terminal workstations
 * Copyright 2019-2024 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package session implements the per-connection dispatcher: the state
// machine, rx buffer, event broadcast, and command loop that sit between
// a transport and its consumers (trigger engine, terminal emulator, UI).
package session

import "github.com/google/uuid"

// ID uniquely identifies a session for its lifetime, including across
// Reconnecting transitions (a reconnect keeps the same ID; only Created
// mints a fresh one).
type ID string

// NewID mints a fresh session identifier.
func NewID() ID {
	return ID(uuid.NewString())
}
