package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type DrawStatus string

const (
	StatusUpcoming             DrawStatus = "upcoming"
	StatusActive               DrawStatus = "active"
	StatusAwaitingAnnouncement DrawStatus = "awaiting_announcement"
	StatusAnnouncing           DrawStatus = "announcing"
	StatusFinished             DrawStatus = "finished"
)

func (s DrawStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusAwaitingAnnouncement, StatusAnnouncing, StatusFinished:
		return true
	}
	return false
}

type PrizeStatus string

const (
	PrizePending   PrizeStatus = "pending"
	PrizeContacted PrizeStatus = "contacted"
	PrizeDelivered PrizeStatus = "delivered"
)

const (
	FirstRound = 1
	FinalRound = 4

	// MinTicketsForAnnouncement is the smallest pool a draw may be announced with.
	MinTicketsForAnnouncement = 20
)

var roundTargets = map[int]int{1: 20, 2: 10, 3: 3, 4: 1}

// RoundTarget returns how many tickets advance out of round r, 0 for an unknown round.
func RoundTarget(r int) int {
	return roundTargets[r]
}

// AnnounceableStatuses are the statuses a due draw can be advanced from.
var AnnounceableStatuses = []DrawStatus{
	StatusUpcoming,
	StatusActive,
	StatusAwaitingAnnouncement,
	StatusAnnouncing,
}

// Draw is a single prize draw with its ticket pool schedule and elimination results.
type Draw struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Prize            string          `json:"prize,omitempty"`
	TicketPrice      decimal.Decimal `json:"ticketPrice"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	AnnouncementDate time.Time       `json:"announcementDate"`
	Status           DrawStatus      `json:"status"`
	RoundWinners     RoundWinners    `json:"roundWinners,omitempty"`
	WinningTicketID  string          `json:"winningTicketId,omitempty"`
	WinnerID         string          `json:"winnerId,omitempty"`
	PrizeStatus      PrizeStatus     `json:"prizeStatus,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Announceable reports whether the draw may be advanced at now.
func (d *Draw) Announceable(now time.Time) bool {
	if d.AnnouncementDate.After(now) {
		return false
	}
	for _, s := range AnnounceableStatuses {
		if d.Status == s {
			return true
		}
	}
	return false
}

// RoundWinners maps a round number to the tickets that advanced out of it.
type RoundWinners map[int][]string

func (rw RoundWinners) Has(r int) bool {
	_, ok := rw[r]
	return ok
}

// NextRound returns the first round without persisted winners, 0 when all rounds are done.
func (rw RoundWinners) NextRound() int {
	for r := FirstRound; r <= FinalRound; r++ {
		if !rw.Has(r) {
			return r
		}
	}
	return 0
}

// Latest returns the highest persisted round, 0 if none.
func (rw RoundWinners) Latest() int {
	latest := 0
	for r := range rw {
		if r > latest && r <= FinalRound {
			latest = r
		}
	}
	return latest
}

func (rw RoundWinners) Clone() RoundWinners {
	if rw == nil {
		return nil
	}
	out := make(RoundWinners, len(rw))
	for r, ids := range rw {
		out[r] = append([]string(nil), ids...)
	}
	return out
}

// Rounds returns the persisted round numbers in ascending order.
func (rw RoundWinners) Rounds() []int {
	rounds := make([]int, 0, len(rw))
	for r := range rw {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)
	return rounds
}

// RoundResult is one committed elimination round. For the final round the
// winning ticket and its owner are written in the same update.
type RoundResult struct {
	DrawID          string
	Round           int
	TicketIDs       []string
	Status          DrawStatus
	WinningTicketID string
	WinnerID        string
	At              time.Time
}
