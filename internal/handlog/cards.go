package handlog

import (
	"strings"

	"github.com/paulhankin/poker"
)

// Orden de palos de poker.Suit: club, diamond, heart, spade.
var suitIndex = map[string]int{
	"♣": 0, "c": 0,
	"♦": 1, "d": 1,
	"♥": 2, "h": 2,
	"♠": 3, "s": 3,
}

// poker.Rank usa 1 para el as y 13 para el rey.
var rankIndex = map[string]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
	"8": 8, "9": 9, "10": 10, "T": 10, "J": 11, "Q": 12, "K": 13,
}

var noCard poker.Card

// ParseCard convierte "A♠", "10♦" o "Td" a una carta.
func ParseCard(s string) (poker.Card, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return noCard, false
	}
	runes := []rune(s)
	if len(runes) < 2 {
		return noCard, false
	}
	suit, ok := suitIndex[strings.ToLower(string(runes[len(runes)-1]))]
	if !ok {
		return noCard, false
	}
	rank, ok := rankIndex[strings.ToUpper(string(runes[:len(runes)-1]))]
	if !ok {
		return noCard, false
	}
	card, err := poker.MakeCard(poker.Suit(suit), poker.Rank(rank))
	if err != nil {
		return noCard, false
	}
	return card, true
}

// ParseCards convierte una lista separada por comas. Las cartas ilegibles se descartan.
func ParseCards(s string) []poker.Card {
	var cards []poker.Card
	for _, part := range strings.Split(s, ",") {
		if c, ok := ParseCard(part); ok {
			cards = append(cards, c)
		}
	}
	return cards
}

// describe nombra la mejor jugada de 2 cartas propias + 5 comunitarias.
func describe(hole, board []poker.Card) string {
	if len(hole) != 2 || len(board) != 5 {
		return ""
	}
	cards := make([]poker.Card, 0, 7)
	cards = append(cards, board...)
	cards = append(cards, hole...)
	desc, err := poker.Describe(cards)
	if err != nil {
		return ""
	}
	return desc
}
