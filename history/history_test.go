package history

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/decibelle-cli/decibelle/filesystem"
	"github.com/decibelle-cli/decibelle/library"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestHistory(t *testing.T) {
	Convey("Given a book", t, func() {
		book := &library.Book{
			ID:       "li_123",
			Title:    "The Stars My Destination",
			Author:   "Alfred Bester",
			Duration: 8 * time.Hour,
		}

		Convey("When saving a listening position", func() {
			err := Save("https://abs.example.com", book, 3600)

			Convey("Then the record should be persisted", func() {
				So(err, ShouldBeNil)

				saved, err := Get()
				So(err, ShouldBeNil)
				So(len(saved), ShouldBeGreaterThan, 0)

				record := saved["li_123 (https://abs.example.com)"]
				So(record, ShouldNotBeNil)
				So(record.Title, ShouldEqual, book.Title)
				So(record.Position, ShouldEqual, 3600)
			})

			Convey("Then an earlier position should not clobber it", func() {
				So(Save("https://abs.example.com", book, 120), ShouldBeNil)

				saved, err := Get()
				So(err, ShouldBeNil)
				So(saved["li_123 (https://abs.example.com)"].Position, ShouldEqual, 3600)
			})

			Convey("Then removing it should leave no record", func() {
				saved, err := Get()
				So(err, ShouldBeNil)

				So(Remove(saved["li_123 (https://abs.example.com)"]), ShouldBeNil)

				saved, err = Get()
				So(err, ShouldBeNil)
				So(saved["li_123 (https://abs.example.com)"], ShouldBeNil)
			})
		})
	})
}
