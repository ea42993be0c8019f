package icon

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGet(t *testing.T) {
	Convey("Given a registered icon", t, func() {
		Convey("It renders in unicode mode", func() {
			SetPlain(false)
			So(Get(Play), ShouldEqual, "▶")
			So(Get(Fail), ShouldNotBeEmpty)
		})

		Convey("It renders ASCII fallbacks in plain mode", func() {
			SetPlain(true)
			defer SetPlain(false)

			So(Get(Play), ShouldEqual, ">")
			So(Get(Pause), ShouldEqual, "||")
			So(Get(Success), ShouldEqual, "+")
		})

		Convey("It returns empty for an unknown identifier", func() {
			So(Get(Icon(-1)), ShouldBeEmpty)
		})
	})
}
