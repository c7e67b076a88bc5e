// Package tgui provides small Telegram UI helpers: HTML-safe text builders,
// inline keyboards, callback_data packing, and list pagination.
//
// The pagination helpers are pure; they never talk to Telegram.
package tgui
