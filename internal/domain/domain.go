package domain

import (
	"errors"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidRange    = errors.New("start date is after end date")
	ErrUnknownExchange = errors.New("unknown exchange")
)

type Exchange string

const (
	ExchangeTSE Exchange = "TSE"
	ExchangeOTC Exchange = "OTC"
	ExchangeOES Exchange = "OES"
)

var Exchanges = []Exchange{ExchangeTSE, ExchangeOTC, ExchangeOES}

func (e Exchange) IsValid() bool {
	switch e {
	case ExchangeTSE, ExchangeOTC, ExchangeOES:
		return true
	}
	return false
}

type Contract struct {
	Code     string   `json:"symbol"`
	Name     string   `json:"name"`
	Exchange Exchange `json:"exchange"`
	Category string   `json:"category"`
}

type ContractFilter struct {
	Exchange string
	Category string
	Limit    int
}

type Quote struct {
	Code      string    `json:"symbol"`
	Exchange  Exchange  `json:"exchange,omitempty"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	ChangePct float64   `json:"change_pct"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type Candle struct {
	Code      string    `json:"symbol"`
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

type UnknownSymbolPolicy string

const (
	PolicyOmit   UnknownSymbolPolicy = "omit"
	PolicyStrict UnknownSymbolPolicy = "strict"
)

func (p UnknownSymbolPolicy) IsValid() bool {
	return p == PolicyOmit || p == PolicyStrict
}
