// Package gpa computes credit-weighted grade point averages.
package gpa

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownGrade   = errors.New("unknown grade")
	ErrInvalidCredits = errors.New("credit units must be positive")
	ErrNoCourses      = errors.New("no courses to grade")
)

// Scale maps a letter grade to its grade points.
type Scale map[string]decimal.Decimal

// FivePoint is the A=5 … F=0 scale.
var FivePoint = Scale{
	"A": decimal.NewFromInt(5),
	"B": decimal.NewFromInt(4),
	"C": decimal.NewFromInt(3),
	"D": decimal.NewFromInt(2),
	"E": decimal.NewFromInt(1),
	"F": decimal.Zero,
}

// FourPoint is the A=4 … F=0 scale.
var FourPoint = Scale{
	"A": decimal.NewFromInt(4),
	"B": decimal.NewFromInt(3),
	"C": decimal.NewFromInt(2),
	"D": decimal.NewFromInt(1),
	"F": decimal.Zero,
}

func (s Scale) Grades() []string {
	grades := make([]string, 0, len(s))
	for grade := range s {
		grades = append(grades, grade)
	}
	sort.Strings(grades)
	return grades
}

func (s Scale) Max() decimal.Decimal {
	max := decimal.Zero
	for _, points := range s {
		if points.GreaterThan(max) {
			max = points
		}
	}
	return max
}

type Course struct {
	Code    string
	Credits int
	Grade   string
}

type Result struct {
	TotalCredits int
	TotalPoints  decimal.Decimal
	GPA          decimal.Decimal
	Class        string
}

// Calculate returns the GPA of courses on scale, rounded to two places.
func Calculate(courses []Course, scale Scale) (Result, error) {
	if len(courses) == 0 {
		return Result{}, ErrNoCourses
	}
	if scale == nil {
		scale = FivePoint
	}

	var result Result
	result.TotalPoints = decimal.Zero
	for _, course := range courses {
		if course.Credits <= 0 {
			return Result{}, fmt.Errorf("%w: %s has %d", ErrInvalidCredits, course.Code, course.Credits)
		}
		grade := strings.ToUpper(strings.TrimSpace(course.Grade))
		points, ok := scale[grade]
		if !ok {
			return Result{}, fmt.Errorf("%w: %q for %s", ErrUnknownGrade, course.Grade, course.Code)
		}
		credits := decimal.NewFromInt(int64(course.Credits))
		result.TotalCredits += course.Credits
		result.TotalPoints = result.TotalPoints.Add(points.Mul(credits))
	}

	result.GPA = result.TotalPoints.Div(decimal.NewFromInt(int64(result.TotalCredits))).Round(2)
	result.Class = classify(result.GPA, scale.Max())
	return result, nil
}

// classify names the degree class by the GPA's share of the scale maximum,
// matching the usual 5-point cut-offs (4.50, 3.50, 2.40, 1.50, 1.00).
func classify(gpa, max decimal.Decimal) string {
	if max.IsZero() {
		return ""
	}
	ratio := gpa.Div(max)
	switch {
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.90")):
		return "First Class"
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.70")):
		return "Second Class Upper"
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.48")):
		return "Second Class Lower"
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.30")):
		return "Third Class"
	case ratio.GreaterThanOrEqual(decimal.RequireFromString("0.20")):
		return "Pass"
	default:
		return "Fail"
	}
}

// ParseCourses reads entries of the form "credits:grade" or
// "code:credits:grade".
func ParseCourses(entries []string) ([]Course, error) {
	courses := make([]Course, 0, len(entries))
	for idx, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		var course Course
		switch len(parts) {
		case 2:
			course.Code = fmt.Sprintf("#%d", idx+1)
		case 3:
			course.Code = parts[0]
			parts = parts[1:]
		default:
			return nil, fmt.Errorf("invalid course %q: want credits:grade or code:credits:grade", entry)
		}

		credits, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidCredits, parts[0], entry)
		}
		course.Credits = credits
		course.Grade = parts[1]
		courses = append(courses, course)
	}
	return courses, nil
}
